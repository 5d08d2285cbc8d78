package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/marquee/internal/database"
	"github.com/sydlexius/marquee/internal/event"
	"github.com/sydlexius/marquee/internal/history"
	"github.com/sydlexius/marquee/internal/lineup"
	"github.com/sydlexius/marquee/internal/spotify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

// echoSearchServer answers every artist search with a single exact-name
// match popular enough to auto-accept.
func echoSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query().Get("q")
		fmt.Fprintf(w, `{"artists":{"items":[
			{"id":"id-%s","name":%s,"followers":{"total":500000},"popularity":80,"images":[]}
		]}}`, q, mustJSON(q))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestManager(t *testing.T, baseURL string) (*Manager, *history.Service) {
	t.Helper()
	logger := discardLogger()
	hist := history.NewService(newTestDB(t))
	bus := event.NewBus(logger, 64)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Run(ctx)

	m := NewManager(spotify.NewWithBaseURL(logger, baseURL), hist, bus, logger)
	m.SetPause(time.Millisecond)
	return m, hist
}

func waitDone(t *testing.T, a *Active) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestStartResolvesAndRecordsHistory(t *testing.T) {
	srv := echoSearchServer(t)
	m, hist := newTestManager(t, srv.URL)

	a, err := m.Start(context.Background(), "sess1", "tok", "The Weeknd & Daft Punk", 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, a)

	snap := a.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", snap.Status)
	}
	if len(snap.Resolved) != 2 {
		t.Fatalf("resolved %d artists, want 2", len(snap.Resolved))
	}
	if snap.Resolved[0].TrackCount != 3 {
		t.Errorf("track count = %d, want 3", snap.Resolved[0].TrackCount)
	}
	if snap.Summary != "Added 2 artists. Could not find 0 artists." {
		t.Errorf("summary = %q", snap.Summary)
	}

	runs, err := hist.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != history.StatusCompleted || runs[0].ResolvedCount != 2 {
		t.Errorf("unexpected history: %+v", runs)
	}
}

func TestNewUploadReplacesActiveRun(t *testing.T) {
	srv := echoSearchServer(t)
	m, hist := newTestManager(t, srv.URL)
	m.SetPause(300 * time.Millisecond)

	a, err := m.Start(context.Background(), "sess1", "tok", "Artist One & Artist Two & Artist Three", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, err := m.Start(context.Background(), "sess1", "tok", "Other Artist", 1)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	// The first run must already be fully over, and canceled.
	select {
	case <-a.Done():
	default:
		t.Fatal("previous run still live after replacement")
	}
	if snap := a.Snapshot(); snap.Status != StatusCanceled {
		t.Errorf("replaced run status = %s, want canceled", snap.Status)
	}

	waitDone(t, b)
	if snap := b.Snapshot(); snap.Status != StatusCompleted || len(snap.Resolved) != 1 {
		t.Errorf("replacement run: %+v", snap)
	}

	runs, err := hist.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	statuses := map[string]int{}
	for _, rec := range runs {
		statuses[rec.Status]++
	}
	if statuses[history.StatusCanceled] != 1 || statuses[history.StatusCompleted] != 1 {
		t.Errorf("history statuses = %v, want one canceled and one completed", statuses)
	}
}

func TestSessionsRunIndependently(t *testing.T) {
	srv := echoSearchServer(t)
	m, _ := newTestManager(t, srv.URL)
	m.SetPause(300 * time.Millisecond)

	a, err := m.Start(context.Background(), "sess1", "tok", "Artist One & Artist Two & Artist Three", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, err := m.Start(context.Background(), "sess2", "tok", "Other Artist", 1)
	if err != nil {
		t.Fatalf("other session Start: %v", err)
	}

	// Another session's upload must not displace this one's run.
	select {
	case <-a.Done():
		t.Fatal("run canceled by a different session's upload")
	default:
	}

	waitDone(t, a)
	waitDone(t, b)
	if snap := a.Snapshot(); snap.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", snap.Status)
	}
}

func TestReplaceRunSuspendedAtGate(t *testing.T) {
	// A run parked at the disambiguation gate must still be replaceable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.HasPrefix(q, "Bonobo") {
			fmt.Fprint(w, `{"artists":{"items":[
				{"id":"b1","name":"Bonobo Live","followers":{"total":5000},"popularity":0,"images":[]}
			]}}`)
			return
		}
		fmt.Fprintf(w, `{"artists":{"items":[
			{"id":"id-%s","name":%s,"followers":{"total":500000},"popularity":80,"images":[]}
		]}}`, q, mustJSON(q))
	}))
	t.Cleanup(srv.Close)
	m, _ := newTestManager(t, srv.URL)

	a, err := m.Start(context.Background(), "sess1", "tok", "Bonobo", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for a.Snapshot().Status != StatusAwaitingChoice {
		if time.Now().After(deadline) {
			t.Fatal("run never reached the gate")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b, err := m.Start(context.Background(), "sess1", "tok", "Other Artist", 1)
	if err != nil {
		t.Fatalf("replacing gated run: %v", err)
	}
	if snap := a.Snapshot(); snap.Status != StatusCanceled {
		t.Errorf("gated run status = %s, want canceled", snap.Status)
	}
	waitDone(t, b)
}

func TestAuthFailureFinishesRun(t *testing.T) {
	srv := echoSearchServer(t)
	m, hist := newTestManager(t, srv.URL)

	a, err := m.Start(context.Background(), "sess1", "expired-token", "Artist One & Artist Two", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, a)

	snap := a.Snapshot()
	if len(snap.Resolved) != 0 {
		t.Errorf("resolved %d artists with a rejected token", len(snap.Resolved))
	}
	runs, err := hist.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].FinishedAt == nil {
		t.Errorf("run not finished in history: %+v", runs)
	}
}

func TestCancelMarksRunCanceled(t *testing.T) {
	srv := echoSearchServer(t)
	m, hist := newTestManager(t, srv.URL)
	m.SetPause(300 * time.Millisecond)

	a, err := m.Start(context.Background(), "sess1", "tok", "Artist One & Artist Two & Artist Three", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Cancel(a.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitDone(t, a)

	if snap := a.Snapshot(); snap.Status != StatusCanceled {
		t.Errorf("status = %s, want canceled", snap.Status)
	}
	runs, err := hist.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != history.StatusCanceled {
		t.Errorf("unexpected history: %+v", runs)
	}
}

func TestSubscribeReplaysFinishedRun(t *testing.T) {
	srv := echoSearchServer(t)
	m, _ := newTestManager(t, srv.URL)

	a, err := m.Start(context.Background(), "sess1", "tok", "The Weeknd", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, a)

	ch, cancel := a.Subscribe()
	defer cancel()

	var types []lineup.EventType
	for ev := range ch {
		types = append(types, ev.Type)
	}
	if len(types) == 0 || types[len(types)-1] != lineup.EventComplete {
		t.Errorf("unexpected replay: %v", types)
	}
}

func TestSubscribeStreamsLiveRun(t *testing.T) {
	srv := echoSearchServer(t)
	m, _ := newTestManager(t, srv.URL)
	m.SetPause(50 * time.Millisecond)

	a, err := m.Start(context.Background(), "sess1", "tok", "Artist One & Artist Two", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ch, cancel := a.Subscribe()
	defer cancel()

	resolved := 0
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before run.complete")
			}
			if ev.Type == lineup.EventArtistResolved {
				resolved++
			}
			if ev.Type == lineup.EventComplete {
				if resolved != 2 {
					t.Errorf("saw %d artist.resolved events, want 2", resolved)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestUnknownRun(t *testing.T) {
	srv := echoSearchServer(t)
	m, _ := newTestManager(t, srv.URL)

	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v, want ErrNotFound", err)
	}
	if err := m.Choose("nope", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Choose: %v, want ErrNotFound", err)
	}
	if err := m.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel: %v, want ErrNotFound", err)
	}
}

func TestReapDropsFinishedRuns(t *testing.T) {
	srv := echoSearchServer(t)
	m, _ := newTestManager(t, srv.URL)

	a, err := m.Start(context.Background(), "sess1", "tok", "The Weeknd", 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, a)

	if n := m.Reap(); n != 1 {
		t.Errorf("reaped %d runs, want 1", n)
	}
	if _, err := m.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("finished run still registered: %v", err)
	}
}
