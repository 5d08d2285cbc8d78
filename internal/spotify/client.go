// Package spotify is a thin client for the slice of the Spotify Web API this
// application consumes: artist search, top tracks, the current user's
// profile, and playlist creation.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"

	// Spotify rejects playlist track additions above this batch size.
	addTracksBatchSize = 100

	searchLimit = 10
)

// AuthError indicates the access token was rejected. The host should send
// the user back through the authorization flow; retrying is pointless.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("spotify: token rejected (status %d)", e.Status)
}

// RequestError indicates a transient or unknown API failure.
type RequestError struct {
	Status int
	Cause  error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("spotify: request failed: %v", e.Cause)
	}
	return fmt.Sprintf("spotify: unexpected status %d", e.Status)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// NotFoundError indicates the requested resource does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("spotify: %s not found", e.Resource)
}

// Client talks to the Spotify Web API with a shared rate limiter.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
}

// New creates a client against the public Spotify API.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(logger, defaultBaseURL)
}

// NewWithBaseURL creates a client with a custom base URL (for testing).
func NewWithBaseURL(logger *slog.Logger, baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(10, 2),
		logger:  logger.With(slog.String("component", "spotify")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SearchArtists searches for artists matching the query, best matches first.
func (c *Client) SearchArtists(ctx context.Context, token, query string) ([]Artist, error) {
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {query},
		"type":  {"artist"},
		"limit": {fmt.Sprint(searchLimit)},
	}
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), token, nil)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	artists := make([]Artist, 0, len(resp.Artists.Items))
	for _, item := range resp.Artists.Items {
		artists = append(artists, artistFromItem(item))
	}

	c.logger.Debug("artist search completed",
		slog.String("query", query),
		slog.Int("results", len(artists)))

	return artists, nil
}

// TopTracks returns an artist's top tracks for the given market, ordered by
// descending popularity.
func (c *Client) TopTracks(ctx context.Context, token, artistID, market string) ([]Track, error) {
	if market == "" {
		market = "US"
	}
	reqURL := fmt.Sprintf("%s/artists/%s/top-tracks?market=%s",
		c.baseURL, url.PathEscape(artistID), url.QueryEscape(market))

	body, err := c.doRequest(ctx, http.MethodGet, reqURL, token, nil)
	if err != nil {
		return nil, err
	}

	var resp topTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top tracks response: %w", err)
	}

	tracks := make([]Track, 0, len(resp.Tracks))
	for _, item := range resp.Tracks {
		tracks = append(tracks, Track{URI: item.URI, Name: item.Name, Popularity: item.Popularity})
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Popularity > tracks[j].Popularity
	})

	return tracks, nil
}

// Me fetches the profile of the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/me", token, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("parsing profile response: %w", err)
	}
	return &user, nil
}

// CreatePlaylist creates a private playlist for the given user.
func (c *Client) CreatePlaylist(ctx context.Context, token, userID, name, description string) (*Playlist, error) {
	payload, err := json.Marshal(createPlaylistRequest{
		Name:        name,
		Description: description,
		Public:      false,
	})
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/users/%s/playlists", c.baseURL, url.PathEscape(userID))
	body, err := c.doRequest(ctx, http.MethodPost, reqURL, token, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var playlist Playlist
	if err := json.Unmarshal(body, &playlist); err != nil {
		return nil, fmt.Errorf("parsing playlist response: %w", err)
	}

	c.logger.Info("playlist created",
		slog.String("playlist_id", playlist.ID),
		slog.String("name", name))

	return &playlist, nil
}

// AddTracks adds track URIs to a playlist in batches of at most 100 per call.
func (c *Client) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	reqURL := fmt.Sprintf("%s/playlists/%s/tracks", c.baseURL, url.PathEscape(playlistID))

	for start := 0; start < len(uris); start += addTracksBatchSize {
		end := start + addTracksBatchSize
		if end > len(uris) {
			end = len(uris)
		}
		payload, err := json.Marshal(addTracksRequest{URIs: uris[start:end]})
		if err != nil {
			return err
		}
		if _, err := c.doRequest(ctx, http.MethodPost, reqURL, token, bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("adding tracks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// doRequest executes an authorized request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, reqURL, token string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RequestError{Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(token, "Bearer "))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// continue
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Resource: reqURL}
	default:
		return nil, &RequestError{Status: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Status == 0 || reqErr.Status == http.StatusTooManyRequests || reqErr.Status >= 500
}
