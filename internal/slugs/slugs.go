// Package slugs provides the loose matching used when a typed wiki-link does
// not name a file exactly ("Project Alpha" vs "project-alpha.md").
package slugs

import (
	"strings"

	goslug "github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Stem converts a file stem or link target to its slug form.
func Stem(s string) string {
	s = norm.NFC.String(strings.TrimSuffix(strings.TrimSpace(s), ".md"))
	slugged := goslug.Make(s)
	if slugged == "" {
		slugged = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	}
	return slugged
}

// Match reports whether two stems are equal once slugified. Empty stems never
// match.
func Match(a, b string) bool {
	sa, sb := Stem(a), Stem(b)
	return sa != "" && sa == sb
}
