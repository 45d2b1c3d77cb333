package utils

import "strings"

// GenerateSlug derives a URL-safe slug from an organization name: lowercase,
// spaces/underscores become hyphens, other non-alphanumerics are stripped,
// runs of hyphens collapse, leading/trailing hyphens are trimmed.
func GenerateSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			b.WriteByte('-')
		}
	}

	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
