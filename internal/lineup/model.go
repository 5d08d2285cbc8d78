// Package lineup turns recognized festival-poster text into resolved artist
// identities. It owns the text normalizer, the match scorer, and the
// resolution state machine that drives per-name search, scoring, and
// human disambiguation.
package lineup

import "context"

// Artist is an external artist identity as returned by the search capability.
// The resolver only reads it, never mutates it.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Followers  int      `json:"followers"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// ResolvedArtist is an accepted match tagged with the per-artist track count
// the playlist builder should use.
type ResolvedArtist struct {
	Artist
	TrackCount int `json:"track_count"`
}

// ScoredMatch pairs an Artist with its relevance score against one candidate
// name. Only relative ordering and the fixed thresholds are meaningful.
type ScoredMatch struct {
	Artist Artist  `json:"artist"`
	Score  float64 `json:"score"`
}

// Searcher is the external artist-search capability the resolver depends on.
// Implementations must return zero or more artists; an authorization failure
// must be reported as (or wrap) ErrAuthExpired so the run can abort early.
type Searcher interface {
	SearchArtists(ctx context.Context, query string) ([]Artist, error)
}
