package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sydlexius/marquee/internal/session"
	"github.com/sydlexius/marquee/internal/version"
)

const (
	sessionCookie = "marquee_session"
	stateCookie   = "marquee_oauth_state"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// currentSession resolves the request's session cookie, refreshing the
// Spotify token first if it has expired and a refresh token is on hand.
func (r *Router) currentSession(req *http.Request) (*session.Session, error) {
	cookie, err := req.Cookie(sessionCookie)
	if err != nil {
		return nil, session.ErrNotFound
	}
	sess, err := r.sessions.Get(req.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	if sess.Token.Valid() {
		return sess, nil
	}
	if sess.Token.RefreshToken == "" {
		return nil, session.ErrNotFound
	}
	fresh, err := r.authenticator.Refresh(req.Context(), sess.Token)
	if err != nil {
		return nil, err
	}
	if err := r.sessions.Save(req.Context(), sess.ID, fresh); err != nil {
		r.logger.Warn("failed to persist refreshed token", "error", err)
	}
	sess.Token = fresh
	return sess, nil
}

// requireSession is currentSession plus the 401 response on failure.
func (r *Router) requireSession(w http.ResponseWriter, req *http.Request) *session.Session {
	sess, err := r.currentSession(req)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.logger.Warn("session lookup failed", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil
	}
	return sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
