package lineup

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Scoring thresholds. A shortlist keeps only matches above scoreFloor;
// a top match at or above autoAcceptScore skips the disambiguation gate.
const (
	scoreFloor      = 30.0
	autoAcceptScore = 80.0
	shortlistSize   = 3
)

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// Score computes a heuristic relevance score between a candidate name and an
// artist. Exact normalized equality dominates, substring containment and
// token overlap recover from OCR mangling, and popularity plus follower
// count break ties between same-named artists. Not a probability; only
// relative ordering and the fixed thresholds are meaningful.
func Score(candidate string, a Artist) float64 {
	name := normalizeForScore(candidate)
	artistName := normalizeForScore(a.Name)

	var score float64
	switch {
	case artistName == name:
		score += 100
	case strings.Contains(artistName, name):
		score += 50
	case strings.Contains(name, artistName):
		score += 40
	}

	nameTokens := strings.Fields(name)
	artistTokens := strings.Fields(artistName)
	matching := 0
	for _, tok := range nameTokens {
		for _, aTok := range artistTokens {
			if strings.Contains(aTok, tok) || strings.Contains(tok, aTok) {
				matching++
				break
			}
		}
	}
	if len(nameTokens) > 0 {
		score += float64(matching) / float64(len(nameTokens)) * 30
	}

	score += float64(a.Popularity) / 10
	score += math.Log(float64(a.Followers)+1) / 2
	score -= math.Abs(float64(len(artistName) - len(name)))

	return score
}

// normalizeForScore lowercases, strips non-word characters, and collapses
// whitespace so both sides of a comparison share one canonical form.
func normalizeForScore(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// shortlist scores artists against the candidate name, drops matches at or
// below the score floor, and returns at most shortlistSize matches in
// descending score order.
func shortlist(candidate string, artists []Artist) []ScoredMatch {
	matches := make([]ScoredMatch, 0, len(artists))
	for _, a := range artists {
		if s := Score(candidate, a); s > scoreFloor {
			matches = append(matches, ScoredMatch{Artist: a, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > shortlistSize {
		matches = matches[:shortlistSize]
	}
	return matches
}
