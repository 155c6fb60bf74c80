package aggregate

import (
	"regexp"
	"strings"
)

const maxSlugLen = 50

var slugDisallowed = regexp.MustCompile(`[^A-Za-z0-9 ._-]+`)

// Slug turns a human-readable title into a filesystem-safe artifact name:
// disallowed characters stripped, spaces become underscores, truncated to
// 50 characters without ending on an underscore. Returns "" when nothing
// usable remains; the caller falls back to a generic name.
func Slug(title string) string {
	s := slugDisallowed.ReplaceAllString(title, "")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return strings.TrimRight(s, "_")
}
