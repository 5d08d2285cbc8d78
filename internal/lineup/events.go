package lineup

// EventType identifies a category of run event.
type EventType string

// Run event types, in the order a consumer typically sees them.
const (
	EventProgress             EventType = "run.progress"
	EventArtistResolved       EventType = "artist.resolved"
	EventDisambiguationNeeded EventType = "disambiguation.needed"
	EventComplete             EventType = "run.complete"
)

// Event is one entry in a run's event stream. Fields are populated
// per type: Artist for artist.resolved, Gate for disambiguation.needed,
// Current/Total for run.progress, and the tallies plus Summary for
// run.complete.
type Event struct {
	Type       EventType       `json:"type"`
	Artist     *ResolvedArtist `json:"artist,omitempty"`
	Gate       *GateRequest    `json:"gate,omitempty"`
	Current    int             `json:"current,omitempty"`
	Total      int             `json:"total,omitempty"`
	Resolved   int             `json:"resolved,omitempty"`
	Unresolved int             `json:"unresolved,omitempty"`
	Summary    string          `json:"summary,omitempty"`
}

// GateRequest is a pending disambiguation: the candidate name being resolved
// and the shortlist the user must pick from (or reject outright).
type GateRequest struct {
	Query     string        `json:"query"`
	Shortlist []ScoredMatch `json:"shortlist"`
}
