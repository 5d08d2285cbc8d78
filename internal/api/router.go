// Package api exposes the HTTP surface: the OAuth flow, run control,
// the run event stream, playlist creation, and history.
package api

import (
	"log/slog"
	"net/http"

	"github.com/sydlexius/marquee/internal/api/middleware"
	"github.com/sydlexius/marquee/internal/event"
	"github.com/sydlexius/marquee/internal/history"
	"github.com/sydlexius/marquee/internal/playlist"
	"github.com/sydlexius/marquee/internal/run"
	"github.com/sydlexius/marquee/internal/session"
	"github.com/sydlexius/marquee/internal/spotify"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Authenticator     *spotify.Authenticator
	Sessions          *session.Store
	Runs              *run.Manager
	Playlists         *playlist.Builder
	History           *history.Service
	Bus               *event.Bus
	Logger            *slog.Logger
	BasePath          string
	DefaultTrackCount int
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authenticator     *spotify.Authenticator
	sessions          *session.Store
	runs              *run.Manager
	playlists         *playlist.Builder
	history           *history.Service
	bus               *event.Bus
	logger            *slog.Logger
	basePath          string
	defaultTrackCount int
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	trackCount := deps.DefaultTrackCount
	if trackCount <= 0 {
		trackCount = 1
	}
	return &Router{
		authenticator:     deps.Authenticator,
		sessions:          deps.Sessions,
		runs:              deps.Runs,
		playlists:         deps.Playlists,
		history:           deps.History,
		bus:               deps.Bus,
		logger:            deps.Logger,
		basePath:          deps.BasePath,
		defaultTrackCount: trackCount,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	authRL := middleware.NewAuthRateLimiter()
	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// OAuth flow; rate-limited per IP.
	mux.Handle("GET "+bp+"/api/v1/auth/login", authRL.Middleware(http.HandlerFunc(r.handleLogin)))
	mux.Handle("GET "+bp+"/api/v1/auth/callback", authRL.Middleware(http.HandlerFunc(r.handleCallback)))
	mux.HandleFunc("GET "+bp+"/api/v1/auth/check", r.handleAuthCheck)
	mux.HandleFunc("POST "+bp+"/api/v1/auth/logout", r.handleLogout)

	// Run control
	mux.HandleFunc("POST "+bp+"/api/v1/runs", r.handleStartRun)
	mux.HandleFunc("GET "+bp+"/api/v1/runs/{id}", r.handleRunSnapshot)
	mux.HandleFunc("GET "+bp+"/api/v1/runs/{id}/events", r.handleRunEvents)
	mux.HandleFunc("POST "+bp+"/api/v1/runs/{id}/choice", r.handleRunChoice)
	mux.HandleFunc("POST "+bp+"/api/v1/runs/{id}/cancel", r.handleRunCancel)

	// Playlist and history
	mux.HandleFunc("POST "+bp+"/api/v1/playlists", r.handleCreatePlaylist)
	mux.HandleFunc("GET "+bp+"/api/v1/history", r.handleHistory)

	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}
