package lineup

import "testing"

func TestScoreExactMatchDominates(t *testing.T) {
	exact := Artist{ID: "1", Name: "The Weeknd", Followers: 50000000, Popularity: 95}
	tribute := Artist{ID: "2", Name: "Weeknd Tribute Band", Followers: 100}

	exactScore := Score("The Weeknd", exact)
	tributeScore := Score("The Weeknd", tribute)

	if exactScore < autoAcceptScore {
		t.Errorf("exact match scored %.1f, want >= %.1f", exactScore, autoAcceptScore)
	}
	if exactScore <= tributeScore {
		t.Errorf("exact match %.1f did not beat tribute %.1f", exactScore, tributeScore)
	}
}

func TestScoreSubstringBonuses(t *testing.T) {
	// Candidate contained in artist name beats artist name contained in candidate.
	inArtist := Score("Bonobo", Artist{Name: "Bonobo Live"})
	inCandidate := Score("Bonobo Live Band", Artist{Name: "Bonobo"})
	if inArtist <= inCandidate {
		t.Errorf("candidate-in-artist %.1f should beat artist-in-candidate %.1f", inArtist, inCandidate)
	}
}

func TestScoreFollowerMonotonicity(t *testing.T) {
	small := Artist{ID: "1", Name: "Caribou", Followers: 1000}
	big := Artist{ID: "2", Name: "Caribou", Followers: 1000000}
	if Score("Caribou", big) < Score("Caribou", small) {
		t.Error("more followers scored lower, all else equal")
	}
}

func TestScoreLengthPenalty(t *testing.T) {
	short := Artist{Name: "Overmono Brothers"}
	long := Artist{Name: "Overmono Brothers And The Extended Touring Ensemble"}
	if Score("Overmono", long) >= Score("Overmono", short) {
		t.Error("longer name mismatch was not penalized")
	}
}

func TestScoreIgnoresPunctuationAndCase(t *testing.T) {
	a := Artist{Name: "RÜFÜS DU SOL"}
	b := Artist{Name: "rufus du sol"}
	diff := Score("Rufus Du Sol", a) - Score("Rufus Du Sol", b)
	// Umlauts are non-word bytes and get stripped, so both normalize differently;
	// the plain-ASCII name must score at least as well as the decorated one.
	if diff > 0 {
		t.Errorf("decorated name outscored plain name by %.1f", diff)
	}
}

func TestScoreNoOverlap(t *testing.T) {
	s := Score("Bicep", Artist{Name: "Totally Unrelated", Followers: 10})
	if s > scoreFloor {
		t.Errorf("unrelated artist scored %.1f, above the shortlist floor", s)
	}
}

func TestShortlistOrderAndSize(t *testing.T) {
	artists := []Artist{
		{ID: "1", Name: "Jamie xx", Followers: 100},
		{ID: "2", Name: "Jamie xx", Followers: 2000000, Popularity: 80},
		{ID: "3", Name: "Jamie xx", Followers: 50000, Popularity: 40},
		{ID: "4", Name: "Jamie xx", Followers: 900, Popularity: 10},
		{ID: "5", Name: "Completely Different", Followers: 5},
	}
	matches := shortlist("Jamie xx", artists)
	if len(matches) != shortlistSize {
		t.Fatalf("shortlist size = %d, want %d", len(matches), shortlistSize)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("shortlist not sorted descending at %d", i)
		}
	}
	if matches[0].Artist.ID != "2" {
		t.Errorf("top match = %s, want the popular exact match", matches[0].Artist.ID)
	}
}

func TestShortlistDropsLowScores(t *testing.T) {
	matches := shortlist("Bicep", []Artist{{ID: "1", Name: "Nothing Alike Here", Followers: 1}})
	if len(matches) != 0 {
		t.Errorf("expected empty shortlist, got %v", matches)
	}
}
