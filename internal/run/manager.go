// Package run tracks in-flight lineup resolution runs and fans their event
// streams out to interested consumers.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/marquee/internal/event"
	"github.com/sydlexius/marquee/internal/history"
	"github.com/sydlexius/marquee/internal/lineup"
	"github.com/sydlexius/marquee/internal/spotify"
)

// ErrNotFound indicates no run exists with the given id.
var ErrNotFound = errors.New("run not found")

// Status is the observable lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusRunning        Status = "running"
	StatusAwaitingChoice Status = "awaiting_choice"
	StatusCompleted      Status = "completed"
	StatusCanceled       Status = "canceled"
)

// Snapshot is a point-in-time view of a run for polling consumers.
type Snapshot struct {
	ID         string                  `json:"id"`
	Status     Status                  `json:"status"`
	Candidates []string                `json:"candidates"`
	Resolved   []lineup.ResolvedArtist `json:"resolved"`
	Gate       *lineup.GateRequest     `json:"gate,omitempty"`
	Summary    string                  `json:"summary,omitempty"`
}

// Manager owns every live run. It enforces one active run per session,
// buffers each run's events for late subscribers, and records terminal
// states in history.
type Manager struct {
	spotify *spotify.Client
	history *history.Service
	bus     *event.Bus
	logger  *slog.Logger
	pause   time.Duration

	mu        sync.Mutex
	runs      map[string]*Active
	bySession map[string]string
}

// NewManager creates a run manager.
func NewManager(client *spotify.Client, hist *history.Service, bus *event.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		spotify:   client,
		history:   hist,
		bus:       bus,
		logger:    logger.With(slog.String("component", "runs")),
		runs:      make(map[string]*Active),
		bySession: make(map[string]string),
	}
}

// SetPause overrides the inter-candidate pause (for testing).
func (m *Manager) SetPause(d time.Duration) { m.pause = d }

// Active is one live (or recently finished) run.
type Active struct {
	ID        string
	SessionID string

	run *lineup.Run

	mu       sync.Mutex
	status   Status
	canceled bool
	summary  string
	backlog  []lineup.Event
	subs     map[chan lineup.Event]struct{}
	done     chan struct{}
}

// spotifySearcher binds a Spotify access token to the resolver's search
// dependency and translates auth rejections into the resolver's sentinel.
type spotifySearcher struct {
	client *spotify.Client
	token  string
}

func (s spotifySearcher) SearchArtists(ctx context.Context, query string) ([]lineup.Artist, error) {
	artists, err := s.client.SearchArtists(ctx, s.token, query)
	if err != nil {
		var authErr *spotify.AuthError
		if errors.As(err, &authErr) {
			return nil, fmt.Errorf("%w: %v", lineup.ErrAuthExpired, err)
		}
		return nil, err
	}
	out := make([]lineup.Artist, len(artists))
	for i, a := range artists {
		out[i] = lineup.Artist{
			ID:         a.ID,
			Name:       a.Name,
			Followers:  a.Followers,
			Genres:     a.Genres,
			Popularity: a.Popularity,
			ImageURL:   a.ImageURL,
		}
	}
	return out, nil
}

// Start begins resolving the given poster text for a session. A new upload
// replaces the session's active run: the old one is canceled and fully
// drained before the fresh run (with its own state and rejected set) begins.
func (m *Manager) Start(ctx context.Context, sessionID, token, rawText string, trackCount int) (*Active, error) {
	id := uuid.NewString()
	for {
		m.mu.Lock()
		prevID, busy := m.bySession[sessionID]
		if !busy {
			m.bySession[sessionID] = id
			m.mu.Unlock()
			break
		}
		prev := m.runs[prevID]
		if prev == nil {
			delete(m.bySession, sessionID)
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()
		m.logger.Info("replacing active run",
			slog.String("session", sessionID),
			slog.String("run_id", prevID))
		prev.mu.Lock()
		prev.canceled = true
		prev.mu.Unlock()
		prev.run.Cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for previous run: %w", ctx.Err())
		}
	}

	resolver := lineup.NewResolver(spotifySearcher{client: m.spotify, token: token}, m.logger)
	if m.pause > 0 {
		resolver = lineup.NewResolverWithPause(spotifySearcher{client: m.spotify, token: token}, m.logger, m.pause)
	}

	// The run outlives the HTTP request that started it.
	lrun := resolver.Start(context.WithoutCancel(ctx), rawText, trackCount)

	a := &Active{
		ID:        id,
		SessionID: sessionID,
		run:       lrun,
		status:    StatusRunning,
		subs:      make(map[chan lineup.Event]struct{}),
		done:      make(chan struct{}),
	}
	m.mu.Lock()
	m.runs[id] = a
	m.mu.Unlock()

	candidates := lrun.Candidates()
	if err := m.history.StartRun(ctx, id, len(candidates)); err != nil {
		m.logger.Error("failed to record run start", slog.String("error", err.Error()))
	}
	m.bus.Publish(event.RunStarted, map[string]any{
		"run_id":     id,
		"candidates": len(candidates),
	})
	m.logger.Info("run started",
		slog.String("run_id", id),
		slog.Int("candidates", len(candidates)))

	go m.pump(a)
	return a, nil
}

// pump drains the resolver's event stream, updates run state, and fans
// events out to subscribers. It runs until the stream closes.
func (m *Manager) pump(a *Active) {
	for ev := range a.run.Events() {
		a.mu.Lock()
		a.backlog = append(a.backlog, ev)
		switch ev.Type {
		case lineup.EventDisambiguationNeeded:
			a.status = StatusAwaitingChoice
		case lineup.EventComplete:
			a.summary = ev.Summary
			if a.canceled {
				a.status = StatusCanceled
			} else {
				a.status = StatusCompleted
			}
		default:
			if a.status == StatusAwaitingChoice {
				a.status = StatusRunning
			}
		}
		for ch := range a.subs {
			select {
			case ch <- ev:
			default:
				m.logger.Warn("slow run subscriber, dropping event",
					slog.String("run_id", a.ID),
					slog.String("type", string(ev.Type)))
			}
		}
		a.mu.Unlock()

		if ev.Type == lineup.EventDisambiguationNeeded {
			m.bus.Publish(event.DisambiguationNeeded, map[string]any{
				"run_id": a.ID,
				"query":  ev.Gate.Query,
			})
		}
		if ev.Type == lineup.EventComplete {
			m.finish(a, ev)
		}
	}

	// Free the session slot before signaling completion so a waiter on
	// Done can start the next run immediately.
	m.mu.Lock()
	if m.bySession[a.SessionID] == a.ID {
		delete(m.bySession, a.SessionID)
	}
	m.mu.Unlock()

	a.mu.Lock()
	for ch := range a.subs {
		close(ch)
	}
	a.subs = nil
	close(a.done)
	a.mu.Unlock()
}

func (m *Manager) finish(a *Active, ev lineup.Event) {
	a.mu.Lock()
	status := a.status
	a.mu.Unlock()

	histStatus := history.StatusCompleted
	busType := event.RunCompleted
	if status == StatusCanceled {
		histStatus = history.StatusCanceled
		busType = event.RunCanceled
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.history.FinishRun(ctx, a.ID, histStatus, ev.Resolved, ev.Unresolved, ev.Summary); err != nil {
		m.logger.Error("failed to record run finish", slog.String("error", err.Error()))
	}
	m.bus.Publish(busType, map[string]any{
		"run_id":     a.ID,
		"resolved":   ev.Resolved,
		"unresolved": ev.Unresolved,
	})
	m.logger.Info("run finished",
		slog.String("run_id", a.ID),
		slog.String("status", string(status)),
		slog.Int("resolved", ev.Resolved),
		slog.Int("unresolved", ev.Unresolved))
}

// Get returns the run with the given id.
func (m *Manager) Get(id string) (*Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Choose forwards a disambiguation decision to the run.
func (m *Manager) Choose(id string, artist *lineup.Artist) error {
	a, err := m.Get(id)
	if err != nil {
		return err
	}
	return a.run.Choose(artist)
}

// Cancel requests cancellation of the run.
func (m *Manager) Cancel(id string) error {
	a, err := m.Get(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.canceled = true
	a.mu.Unlock()
	a.run.Cancel()
	return nil
}

// Reap drops finished runs from the registry. Call it periodically; live
// runs are never reaped.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for id, a := range m.runs {
		select {
		case <-a.done:
			delete(m.runs, id)
			reaped++
		default:
		}
	}
	return reaped
}

// Snapshot returns the run's current state, including any pending gate.
func (a *Active) Snapshot() Snapshot {
	a.mu.Lock()
	status := a.status
	summary := a.summary
	a.mu.Unlock()
	return Snapshot{
		ID:         a.ID,
		Status:     status,
		Candidates: a.run.Candidates(),
		Resolved:   a.run.Resolved(),
		Gate:       a.run.PendingGate(),
		Summary:    summary,
	}
}

// Resolved returns the artists accepted so far.
func (a *Active) Resolved() []lineup.ResolvedArtist { return a.run.Resolved() }

// Done returns a channel closed once the run has fully finished.
func (a *Active) Done() <-chan struct{} { return a.done }

// Subscribe returns a channel that replays the run's past events and then
// streams new ones. The channel closes when the run finishes. The returned
// cancel function detaches the subscriber; it is safe to call after close.
func (a *Active) Subscribe() (<-chan lineup.Event, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan lineup.Event, 256+len(a.backlog))
	for _, ev := range a.backlog {
		ch <- ev
	}
	if a.subs == nil {
		// Already finished; the backlog is all there is.
		close(ch)
		return ch, func() {}
	}
	a.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.subs != nil {
				delete(a.subs, ch)
			}
		})
	}
	return ch, cancel
}
