// Package shellquote builds shell command lines from operator templates.
package shellquote

import (
	"sort"
	"strings"
)

// Quote wraps s in single quotes, escaping any internal single quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Expand replaces every {name} placeholder in tmpl with the quoted value of
// vars[name]. Unknown placeholders are left untouched.
func Expand(tmpl string, vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", Quote(vars[name]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
