package assess

import "strings"

// tokenizeIngredients splits free-form ingredient text into individual
// mentions. Segments are delimited by commas and semicolons; parenthetical
// sub-lists are flattened into their own segments so "flour (wheat, malted
// barley)" yields three mentions.
func tokenizeIngredients(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ';', '(', ')', '[', ']':
			return ','
		default:
			return r
		}
	}, text)

	parts := strings.Split(normalized, ",")
	mentions := make([]string, 0, len(parts))
	for _, p := range parts {
		m := strings.Trim(strings.TrimSpace(p), ".:*")
		if m != "" {
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// unionMentions appends declared allergens to the tokenized mentions,
// deduplicating case-insensitively while preserving first-seen order.
func unionMentions(mentions, declared []string, fold func(string) string) []string {
	seen := make(map[string]struct{}, len(mentions)+len(declared))
	out := make([]string, 0, len(mentions)+len(declared))
	for _, lists := range [][]string{mentions, declared} {
		for _, m := range lists {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			key := fold(m)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
