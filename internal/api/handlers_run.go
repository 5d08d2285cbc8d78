package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sydlexius/marquee/internal/lineup"
	"github.com/sydlexius/marquee/internal/run"
)

func (r *Router) handleStartRun(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}

	var body struct {
		Text       string `json:"text"`
		TrackCount int    `json:"default_track_count"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if body.TrackCount <= 0 {
		body.TrackCount = r.defaultTrackCount
	}

	// A new upload supersedes the session's active run, if any.
	active, err := r.runs.Start(req.Context(), sess.ID, sess.Token.AccessToken, body.Text, body.TrackCount)
	if err != nil {
		r.logger.Error("failed to start run", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusAccepted, active.Snapshot())
}

// ownedRun resolves the {id} path value to a run belonging to the session.
// Runs from other sessions read as not found.
func (r *Router) ownedRun(w http.ResponseWriter, req *http.Request, sessionID string) *run.Active {
	active, err := r.runs.Get(req.PathValue("id"))
	if err != nil || active.SessionID != sessionID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil
	}
	return active
}

func (r *Router) handleRunSnapshot(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}
	active := r.ownedRun(w, req, sess.ID)
	if active == nil {
		return
	}
	writeJSON(w, http.StatusOK, active.Snapshot())
}

// handleRunEvents streams the run's events as server-sent events, replaying
// everything that already happened so a reconnecting client misses nothing.
func (r *Router) handleRunEvents(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}
	active := r.ownedRun(w, req, sess.ID)
	if active == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := active.Subscribe()
	defer cancel()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				r.logger.Error("failed to encode run event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		case <-req.Context().Done():
			return
		}
	}
}

func (r *Router) handleRunChoice(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}
	active := r.ownedRun(w, req, sess.ID)
	if active == nil {
		return
	}

	// A null artist_id rejects the whole shortlist.
	var body struct {
		ArtistID *string `json:"artist_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var chosen *lineup.Artist
	if body.ArtistID != nil && *body.ArtistID != "" {
		gate := active.Snapshot().Gate
		if gate == nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no disambiguation pending"})
			return
		}
		for _, m := range gate.Shortlist {
			if m.Artist.ID == *body.ArtistID {
				a := m.Artist
				chosen = &a
				break
			}
		}
		if chosen == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "artist is not on the shortlist"})
			return
		}
	}

	if err := r.runs.Choose(active.ID, chosen); err != nil {
		if errors.Is(err, lineup.ErrNoPendingGate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no disambiguation pending"})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleRunCancel(w http.ResponseWriter, req *http.Request) {
	sess := r.requireSession(w, req)
	if sess == nil {
		return
	}
	active := r.ownedRun(w, req, sess.ID)
	if active == nil {
		return
	}
	if err := r.runs.Cancel(active.ID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
