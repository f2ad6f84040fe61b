package signal

import "regexp"

var (
	capitalizedBigramRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	capitalizedTokenRe  = regexp.MustCompile(`\b[A-Z][a-z]{3,}\b`)
	isoDateRe           = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDateRe         = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	clockTimeRe         = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

// ExtractEntities pulls capitalized bigrams, capitalized tokens, dates and
// times from text, deduplicated in order of first appearance.
func ExtractEntities(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	add := func(matches []string) {
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	add(capitalizedBigramRe.FindAllString(text, -1))
	add(capitalizedTokenRe.FindAllString(text, -1))
	add(isoDateRe.FindAllString(text, -1))
	add(slashDateRe.FindAllString(text, -1))
	add(clockTimeRe.FindAllString(text, -1))
	return out
}
