package content

import (
	"strings"

	"github.com/alkime/voicepost/internal/domain"
)

// Flatten joins the non-empty parts of f with blank lines, hashtags last and
// each prefixed with a single '#'.
func Flatten(f Fields) string {
	parts := make([]string, 0, 4)

	for _, part := range []string{
		strings.TrimSpace(f.Hook),
		strings.TrimSpace(f.Body),
		strings.TrimSpace(f.CallToAction),
		domain.FormatHashtags(f.Hashtags),
	} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, "\n\n")
}
