package lineup

import (
	"regexp"
	"strings"
)

// Poster text is noisy: OCR misreads glyphs, banner headers interleave with
// names, and collaborations are typeset with decorative separators. The
// normalizer errs toward dropping fragments it cannot vouch for; a missed
// artist costs one playlist entry, a bogus one costs a wasted search and a
// possible spurious match.
var (
	dayHeaderRe  = regexp.MustCompile(`(?im)\b(?:SATURDAY|SUNDAY|MONDAY|TUESDAY|WEDNESDAY|THURSDAY|FRIDAY)\b.*$`)
	promoLineRe  = regexp.MustCompile(`(?im)(?:presents?|debut|premiere|world|bunker)\b.*$`)
	monthLineRe  = regexp.MustCompile(`(?im)\b(?:APRIL|MAY|JUNE|JULY|AUGUST)\b.*$`)
	misreadRe    = regexp.MustCompile(`\b(?:lallfw|Mainrlazer)\b`)
	numberCodeRe = regexp.MustCompile(`\b\d{2,}|[A-Z]\d+\b`)
	collabRe     = regexp.MustCompile(`[«"]`)
	punctRe      = regexp.MustCompile("[!\"#$%&'()*+,./:;<=>?@\\[\\]^_`{|}~]")

	separatorRe = regexp.MustCompile(`[-\n\r&x]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
	edgeDelimRe = regexp.MustCompile(`^[x\s]+|[x\s]+$`)
	innerJoinRe = regexp.MustCompile(`\s*(?:x|\+)\s*`)

	letterRe    = regexp.MustCompile(`[A-Za-z]`)
	delimOnlyRe = regexp.MustCompile(`^[x\s]+$`)
	stopwordRe  = regexp.MustCompile(`(?i)^(?:of|the|and|or|feat|ft|presents?|debut|premiere|world|bunker|friends|ultra)$`)
	venueWordRe = regexp.MustCompile(`(?i)\b(?:stage|tent|arena|hall|room|zone|area|lineup|festival)\b`)
	allCapsRe   = regexp.MustCompile(`^[A-Z\s]+$`)
)

// Normalize cleans raw OCR output into a deduplicated, ordered list of
// candidate artist names. It is pure and deterministic: banner lines and
// alphanumeric codes are stripped, quote-like glyphs become collaboration
// delimiters, punctuation becomes separators, and the text is split into
// fragments that must pass the candidate-name filters to survive.
// Duplicates are removed case-insensitively, keeping first-seen order.
func Normalize(raw string) []string {
	clean := dayHeaderRe.ReplaceAllString(raw, "")
	clean = promoLineRe.ReplaceAllString(clean, "")
	clean = monthLineRe.ReplaceAllString(clean, "")
	clean = misreadRe.ReplaceAllString(clean, "")
	clean = numberCodeRe.ReplaceAllString(clean, "")
	clean = collabRe.ReplaceAllString(clean, "x")
	clean = punctRe.ReplaceAllString(clean, "-")

	var names []string
	seen := make(map[string]struct{})
	for _, fragment := range separatorRe.Split(clean, -1) {
		name := strings.TrimSpace(fragment)
		name = spaceRe.ReplaceAllString(name, " ")
		name = edgeDelimRe.ReplaceAllString(name, "")
		name = innerJoinRe.ReplaceAllString(name, " ")

		if !isCandidateName(name) {
			continue
		}

		for _, part := range expandCollaboration(name) {
			key := strings.ToLower(part)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, part)
		}
	}
	return names
}

// isCandidateName applies the candidate-name invariants: length in [2,50],
// at least one letter, not a bare separator, not a stopword or venue noun,
// and not an all-uppercase banner longer than 10 characters.
func isCandidateName(name string) bool {
	if len(name) < 2 || len(name) > 50 {
		return false
	}
	if !letterRe.MatchString(name) {
		return false
	}
	if delimOnlyRe.MatchString(name) {
		return false
	}
	if stopwordRe.MatchString(name) {
		return false
	}
	if venueWordRe.MatchString(name) {
		return false
	}
	if allCapsRe.MatchString(name) && len(name) > 10 {
		return false
	}
	return true
}

// expandCollaboration splits "A x B" into separate names when both halves
// independently look like names; otherwise the fragment stays whole.
// separatorRe has already consumed bare "x" and punctRe has folded "+", so
// by the time fragments get here this pass (like innerJoinRe above) almost
// never fires; it is kept so the cleanup order is not load-bearing.
func expandCollaboration(name string) []string {
	if !strings.Contains(name, " x ") {
		return []string{name}
	}
	parts := strings.Split(name, " x ")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) < 2 || !letterRe.MatchString(p) {
			return []string{name}
		}
		parts[i] = p
	}
	return parts
}
