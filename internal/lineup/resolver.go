package lineup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrAuthExpired is wrapped by searchers when the underlying capability
// rejects the auth token. Unlike ordinary search failures, which only fail
// one candidate, an expired token aborts the whole run since every
// subsequent search would fail identically.
var ErrAuthExpired = errors.New("authorization expired")

// ErrNoPendingGate is returned by Choose when no disambiguation is pending.
var ErrNoPendingGate = errors.New("no disambiguation pending")

// defaultPause is the delay between candidates, there to stay friendly with
// the search capability's rate limits. Skipped after the last candidate.
const defaultPause = 100 * time.Millisecond

// Resolver drives the per-name resolution loop against a Searcher.
type Resolver struct {
	searcher Searcher
	logger   *slog.Logger
	pause    time.Duration
}

// NewResolver creates a resolver with the default inter-candidate pause.
func NewResolver(searcher Searcher, logger *slog.Logger) *Resolver {
	return NewResolverWithPause(searcher, logger, defaultPause)
}

// NewResolverWithPause creates a resolver with a custom inter-candidate
// pause (for testing).
func NewResolverWithPause(searcher Searcher, logger *slog.Logger, pause time.Duration) *Resolver {
	return &Resolver{
		searcher: searcher,
		logger:   logger.With(slog.String("component", "resolver")),
		pause:    pause,
	}
}

// Run is one end-to-end resolution pass over a single poster's text.
// A run is strictly sequential: one candidate at a time, at most one
// pending gate, and rejected-id updates causally ordered between
// candidates. State never leaks across runs; a new upload gets a new Run.
type Run struct {
	resolver   *Resolver
	names      []string
	trackCount int

	events chan Event

	cancelOnce sync.Once
	canceled   chan struct{}

	mu         sync.Mutex
	pending    *gate
	resolved   []ResolvedArtist
	unresolved []string
	rejected   map[string]struct{}
}

// gate is a suspended disambiguation awaiting exactly one reply.
type gate struct {
	req   GateRequest
	reply chan *Artist
}

// Start normalizes the raw text and begins resolving candidates in a
// background goroutine. Events stream from Events until the run completes
// or is canceled; the channel is closed after the final run.complete event.
func (r *Resolver) Start(ctx context.Context, rawText string, trackCount int) *Run {
	run := &Run{
		resolver:   r,
		names:      Normalize(rawText),
		trackCount: trackCount,
		events:     make(chan Event, 256),
		canceled:   make(chan struct{}),
		rejected:   make(map[string]struct{}),
	}
	go run.loop(ctx)
	return run
}

// Events returns the run's event stream. Closed when the run is over.
func (run *Run) Events() <-chan Event { return run.events }

// Cancel requests cooperative cancellation. The current search call may
// complete, but no further candidates are processed and any pending gate
// resolves as a rejection. Safe to call more than once.
func (run *Run) Cancel() {
	run.cancelOnce.Do(func() { close(run.canceled) })
}

// Choose resolves the pending disambiguation. A non-nil artist is accepted
// for the suspended candidate; nil rejects the whole shortlist, and every
// shortlisted id is excluded from the rest of the run.
func (run *Run) Choose(artist *Artist) error {
	run.mu.Lock()
	g := run.pending
	run.pending = nil
	run.mu.Unlock()

	if g == nil {
		return ErrNoPendingGate
	}
	g.reply <- artist
	return nil
}

// PendingGate returns the disambiguation currently awaiting a choice, or nil.
func (run *Run) PendingGate() *GateRequest {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.pending == nil {
		return nil
	}
	req := run.pending.req
	return &req
}

// Resolved returns a copy of the artists accepted so far.
func (run *Run) Resolved() []ResolvedArtist {
	run.mu.Lock()
	defer run.mu.Unlock()
	out := make([]ResolvedArtist, len(run.resolved))
	copy(out, run.resolved)
	return out
}

// Candidates returns the candidate names extracted from the raw text.
func (run *Run) Candidates() []string {
	out := make([]string, len(run.names))
	copy(out, run.names)
	return out
}

// emit hands an event to the consumer. The buffer is sized for a full run;
// should a stalled consumer fill it anyway, the event is dropped so the
// loop never wedges.
func (run *Run) emit(ev Event) {
	select {
	case run.events <- ev:
	default:
		run.resolver.logger.Warn("event buffer full, dropping event",
			slog.String("type", string(ev.Type)))
	}
}

func (run *Run) loop(ctx context.Context) {
	defer close(run.events)

	total := len(run.names)
	for i, name := range run.names {
		if run.isCanceled(ctx) {
			break
		}
		run.emit(Event{Type: EventProgress, Current: i + 1, Total: total})

		artist, err := run.resolveOne(ctx, name)
		switch {
		case err != nil:
			// Expired token: every further search would fail the same way.
			run.resolver.logger.Error("aborting run", slog.String("error", err.Error()))
			run.markUnresolved(name)
		case artist != nil:
			accepted := ResolvedArtist{Artist: *artist, TrackCount: run.trackCount}
			run.mu.Lock()
			run.resolved = append(run.resolved, accepted)
			run.mu.Unlock()
			run.emit(Event{Type: EventArtistResolved, Artist: &accepted})
		default:
			run.markUnresolved(name)
		}
		if err != nil {
			break
		}

		if i < total-1 {
			select {
			case <-time.After(run.resolver.pause):
			case <-run.canceled:
			case <-ctx.Done():
			}
		}
	}

	run.mu.Lock()
	resolved, unresolved := len(run.resolved), len(run.unresolved)
	run.mu.Unlock()
	run.emit(Event{
		Type:       EventComplete,
		Resolved:   resolved,
		Unresolved: unresolved,
		Summary:    fmt.Sprintf("Added %d artists. Could not find %d artists.", resolved, unresolved),
	})
}

// resolveOne runs the per-candidate protocol: try each query variant in
// order, filter out rejected identities, score and shortlist what remains,
// auto-accept a dominant match, or suspend at the gate for a human call.
// A gate decision, either way, is terminal for the candidate.
func (run *Run) resolveOne(ctx context.Context, name string) (*Artist, error) {
	for _, query := range queryVariants(name) {
		artists, err := run.resolver.searcher.SearchArtists(ctx, query)
		if err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return nil, err
			}
			// Absorbed locally: this candidate is not found, the run goes on.
			run.resolver.logger.Warn("artist search failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
			return nil, nil
		}

		candidates := run.withoutRejected(artists)
		if len(candidates) == 0 {
			continue
		}
		matches := shortlist(name, candidates)
		if len(matches) == 0 {
			continue
		}

		if matches[0].Score >= autoAcceptScore {
			accepted := matches[0].Artist
			return &accepted, nil
		}

		chosen, ok := run.awaitChoice(ctx, name, matches)
		if !ok {
			return nil, nil // canceled while suspended
		}
		if chosen != nil {
			return chosen, nil
		}
		run.rejectAll(matches)
		return nil, nil
	}
	return nil, nil
}

// awaitChoice suspends the loop at the disambiguation gate until the
// consumer picks an artist, rejects the shortlist, or cancels the run.
// Returns ok=false only on cancellation.
func (run *Run) awaitChoice(ctx context.Context, name string, matches []ScoredMatch) (*Artist, bool) {
	g := &gate{
		req:   GateRequest{Query: name, Shortlist: matches},
		reply: make(chan *Artist, 1),
	}
	run.mu.Lock()
	run.pending = g
	run.mu.Unlock()

	run.emit(Event{Type: EventDisambiguationNeeded, Gate: &g.req})

	select {
	case artist := <-g.reply:
		return artist, true
	case <-run.canceled:
	case <-ctx.Done():
	}
	run.mu.Lock()
	run.pending = nil
	run.mu.Unlock()
	return nil, false
}

// queryVariants builds up to three search queries for a candidate: the name
// itself, the name with punctuation flattened to spaces, and the first token
// alone. The fallbacks recover from OCR-mangled multi-word names.
func queryVariants(name string) []string {
	variants := []string{
		name,
		strings.TrimSpace(spaceRe.ReplaceAllString(nonWordRe.ReplaceAllString(name, " "), " ")),
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		variants = append(variants, fields[0])
	}

	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (run *Run) withoutRejected(artists []Artist) []Artist {
	run.mu.Lock()
	defer run.mu.Unlock()
	out := make([]Artist, 0, len(artists))
	for _, a := range artists {
		if _, rejected := run.rejected[a.ID]; !rejected {
			out = append(out, a)
		}
	}
	return out
}

func (run *Run) rejectAll(matches []ScoredMatch) {
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, m := range matches {
		run.rejected[m.Artist.ID] = struct{}{}
	}
}

func (run *Run) markUnresolved(name string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.unresolved = append(run.unresolved, name)
}

func (run *Run) isCanceled(ctx context.Context) bool {
	select {
	case <-run.canceled:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
