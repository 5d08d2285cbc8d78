// Package playlist assembles a Spotify playlist from resolved artists.
package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sydlexius/marquee/internal/spotify"
)

// ArtistSelection is one artist to pull top tracks from.
type ArtistSelection struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
}

// Result summarizes a built playlist.
type Result struct {
	Playlist    spotify.Playlist `json:"playlist"`
	TracksAdded int              `json:"tracks_added"`
	Skipped     []string         `json:"skipped,omitempty"` // artists with no usable tracks
}

// Builder creates playlists from artist selections.
type Builder struct {
	client *spotify.Client
	market string
	logger *slog.Logger
}

// NewBuilder creates a Builder using the given market for top-track lookups.
func NewBuilder(client *spotify.Client, market string, logger *slog.Logger) *Builder {
	return &Builder{
		client: client,
		market: market,
		logger: logger.With(slog.String("component", "playlist")),
	}
}

// Build collects each artist's top tracks, dedupes the URIs preserving
// order, creates a private playlist, and adds the tracks in batches.
// Transient track lookups are retried; an artist whose tracks cannot be
// fetched is skipped rather than failing the whole playlist.
func (b *Builder) Build(ctx context.Context, token, name string, artists []ArtistSelection) (*Result, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name is required")
	}
	if len(artists) == 0 {
		return nil, fmt.Errorf("no artists selected")
	}

	user, err := b.client.Me(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}

	var uris []string
	seen := make(map[string]struct{})
	var skipped []string
	for _, a := range artists {
		count := a.TrackCount
		if count <= 0 {
			count = 1
		}

		tracks, err := b.topTracksWithRetry(ctx, token, a.ID)
		if err != nil {
			b.logger.Warn("skipping artist, top tracks unavailable",
				slog.String("artist", a.Name),
				slog.String("error", err.Error()))
			skipped = append(skipped, a.Name)
			continue
		}
		if len(tracks) == 0 {
			skipped = append(skipped, a.Name)
			continue
		}
		if count > len(tracks) {
			count = len(tracks)
		}
		for _, tr := range tracks[:count] {
			if _, dup := seen[tr.URI]; dup {
				continue
			}
			seen[tr.URI] = struct{}{}
			uris = append(uris, tr.URI)
		}
	}

	if len(uris) == 0 {
		return nil, fmt.Errorf("no tracks found for any selected artist")
	}

	description := fmt.Sprintf("Created with Marquee - contains tracks from %d artists", len(artists))
	created, err := b.client.CreatePlaylist(ctx, token, user.ID, name, description)
	if err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}

	if err := b.client.AddTracks(ctx, token, created.ID, uris); err != nil {
		// The playlist may already hold some batches; keep it.
		return nil, fmt.Errorf("adding tracks to playlist %s: %w", created.ID, err)
	}

	return &Result{Playlist: *created, TracksAdded: len(uris), Skipped: skipped}, nil
}

// topTracksWithRetry retries transient failures with fibonacci backoff.
// Auth failures surface immediately.
func (b *Builder) topTracksWithRetry(ctx context.Context, token, artistID string) ([]spotify.Track, error) {
	var tracks []spotify.Track
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		tracks, err = b.client.TopTracks(ctx, token, artistID, b.market)
		if err != nil {
			if spotify.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	return tracks, err
}
