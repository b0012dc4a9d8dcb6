package domain

import "strings"

// NormalizeHashtags strips surrounding whitespace, quotes and any leading '#'
// from each tag and drops tags that end up empty. Order is preserved.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.Trim(strings.TrimSpace(tag), `"'`)
		tag = strings.TrimLeft(tag, "#")
		tag = strings.TrimSpace(tag)

		if tag == "" {
			continue
		}

		out = append(out, tag)
	}

	return out
}

// FormatHashtags renders normalized tags for display, one '#' per tag,
// separated by spaces.
func FormatHashtags(tags []string) string {
	normalized := NormalizeHashtags(tags)
	for i, tag := range normalized {
		normalized[i] = "#" + tag
	}

	return strings.Join(normalized, " ")
}
