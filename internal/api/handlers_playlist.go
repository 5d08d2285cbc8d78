package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/sydlexius/marquee/internal/event"
	"github.com/sydlexius/marquee/internal/playlist"
	"github.com/sydlexius/marquee/internal/spotify"
)

func (r *Router) handleCreatePlaylist(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}

	var body struct {
		Name    string                     `json:"name"`
		RunID   string                     `json:"run_id"`
		Artists []playlist.ArtistSelection `json:"artists"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	// No explicit selection: take everything the referenced run resolved.
	if len(body.Artists) == 0 && body.RunID != "" {
		active, err := r.runs.Get(body.RunID)
		if err != nil || active.SessionID != sess.ID {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		for _, a := range active.Resolved() {
			body.Artists = append(body.Artists, playlist.ArtistSelection{
				ID:         a.ID,
				Name:       a.Name,
				TrackCount: a.TrackCount,
			})
		}
	}
	if len(body.Artists) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no artists selected"})
		return
	}

	result, err := r.playlists.Build(req.Context(), sess.Token.AccessToken, body.Name, body.Artists)
	if err != nil {
		var authErr *spotify.AuthError
		if errors.As(err, &authErr) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "spotify authorization expired"})
			return
		}
		r.logger.Error("playlist build failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "playlist creation failed"})
		return
	}

	recordID := uuid.NewString()
	if err := r.history.RecordPlaylist(req.Context(), recordID, body.RunID, body.Name, result.TracksAdded); err != nil {
		r.logger.Error("failed to record playlist", "error", err)
	}
	r.bus.Publish(event.PlaylistCreated, map[string]any{
		"playlist_id": result.Playlist.ID,
		"name":        body.Name,
		"tracks":      result.TracksAdded,
	})

	writeJSON(w, http.StatusCreated, result)
}

func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) {
	if r.requireSession(w, req) == nil {
		return
	}

	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := r.history.ListRuns(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	playlists, err := r.history.ListPlaylists(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list playlists", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":      runs,
		"playlists": playlists,
	})
}
