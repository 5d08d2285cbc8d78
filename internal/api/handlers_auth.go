package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/marquee/internal/session"
)

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	http.Redirect(w, req, r.authenticator.AuthURL(state), http.StatusFound)
}

func (r *Router) handleCallback(w http.ResponseWriter, req *http.Request) {
	if errMsg := req.URL.Query().Get("error"); errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization declined"})
		return
	}

	stateParam := req.URL.Query().Get("state")
	cookie, err := req.Cookie(stateCookie)
	if err != nil || stateParam == "" || stateParam != cookie.Value {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state mismatch"})
		return
	}

	code := req.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
		return
	}
	token, err := r.authenticator.Exchange(req.Context(), code)
	if err != nil {
		r.logger.Error("code exchange failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "code exchange failed"})
		return
	}

	id := uuid.NewString()
	if err := r.sessions.Save(req.Context(), id, token); err != nil {
		r.logger.Error("failed to save session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	// The state cookie has served its purpose.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	// Lax, not Strict: the callback arrives as a cross-site navigation
	// from the authorization server.
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   30 * 86400,
	})
	http.Redirect(w, req, r.basePath+"/", http.StatusFound)
}

func (r *Router) handleAuthCheck(w http.ResponseWriter, req *http.Request) {
	sess, err := r.currentSession(req)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.logger.Warn("auth check failed", "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"expires_at":    sess.Token.Expiry.UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if cookie, err := req.Cookie(sessionCookie); err == nil {
		if delErr := r.sessions.Delete(req.Context(), cookie.Value); delErr != nil {
			r.logger.Warn("failed to delete session", "error", delErr)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
