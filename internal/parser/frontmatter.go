// Package parser extracts the few structural facts the sync engine needs from
// Markdown files: front-matter tags, the top-level section outline and fenced
// code.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents parsed frontmatter data.
type Frontmatter struct {
	// Fields are the decoded YAML keys.
	Fields map[string]interface{}

	// Raw is the raw frontmatter content.
	Raw string

	// EndLine is the line where frontmatter ends (1-indexed).
	EndLine int
}

// FrontmatterBounds returns the opening and closing frontmatter line indices.
// It only detects frontmatter when the first line is '---'.
// If frontmatter is present but unclosed, endLine is -1.
func FrontmatterBounds(lines []string) (startLine int, endLine int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, -1, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return 0, i, true
		}
	}

	return 0, -1, true
}

// ParseFrontmatter parses YAML frontmatter from markdown content.
// Returns nil if no frontmatter is found.
func ParseFrontmatter(content string) (*Frontmatter, error) {
	lines := strings.Split(content, "\n")

	_, endLine, ok := FrontmatterBounds(lines)
	if !ok || endLine == -1 {
		return nil, nil
	}

	frontmatterContent := strings.Join(lines[1:endLine], "\n")

	var yamlData map[string]interface{}
	if err := yaml.Unmarshal([]byte(frontmatterContent), &yamlData); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter as YAML: %w", err)
	}

	// YAML can decode an empty document (or comments/whitespace only) into a nil map.
	if yamlData == nil {
		yamlData = map[string]interface{}{}
	}

	return &Frontmatter{
		Fields:  yamlData,
		Raw:     frontmatterContent,
		EndLine: endLine + 1,
	}, nil
}

// Tags returns the values of the tags (or tag) key. Lists, single strings and
// comma/space separated strings are accepted; a leading '#' is dropped.
func (fm *Frontmatter) Tags() []string {
	if fm == nil {
		return nil
	}
	var out []string
	for _, key := range []string{"tags", "tag"} {
		out = append(out, tagValues(fm.Fields[key])...)
	}
	return out
}

// HasTag reports whether the front matter carries tag.
func (fm *Frontmatter) HasTag(tag string) bool {
	for _, t := range fm.Tags() {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func tagValues(v interface{}) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, f := range strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ' ' }) {
			if t := strings.TrimPrefix(strings.TrimSpace(f), "#"); t != "" {
				out = append(out, t)
			}
		}
		return out
	case []interface{}:
		var out []string
		for _, item := range val {
			out = append(out, tagValues(item)...)
		}
		return out
	case nil:
		return nil
	default:
		return tagValues(fmt.Sprint(val))
	}
}

// FrontmatterTags parses content and returns its front-matter tags. Files
// without front matter have no tags.
func FrontmatterTags(content string) ([]string, error) {
	fm, err := ParseFrontmatter(content)
	if err != nil {
		return nil, err
	}
	return fm.Tags(), nil
}

// BodyStart returns the index of the first line after the front matter block,
// or 0 when there is none.
func BodyStart(lines []string) int {
	_, end, ok := FrontmatterBounds(lines)
	if !ok || end == -1 {
		return 0
	}
	return end + 1
}
