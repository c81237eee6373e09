package uploadingester

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// Extraction is the doc-type metadata pulled from one upload.
type Extraction struct {
	// Metadata holds one range per detected doc type. Types declared in
	// frontmatter but never located in the body carry the -1 sentinel
	// and are not trusted by state derivation.
	Metadata []project.DocRange

	// ManualTags are user-assigned doc types from frontmatter. They are
	// trusted as-is.
	ManualTags []string

	// Title is the first H1 heading, when present.
	Title string
}

// ExtractMetadata derives doc-type metadata from an upload: YAML
// frontmatter declarations plus a heading scan that locates each doc
// type's line range in the body.
func ExtractMetadata(catalog *constraint.Catalog, content []byte) (*Extraction, error) {
	front, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, err
	}

	declared := frontmatterTypes(front)
	located := scanHeadings(catalog, body)

	out := &Extraction{
		ManualTags: frontmatterTags(front),
		Title:      firstH1(body),
	}

	seen := make(map[string]bool)
	for _, r := range located {
		seen[r.Type] = true
		out.Metadata = append(out.Metadata, r)
	}
	for _, t := range declared {
		if !seen[t] {
			seen[t] = true
			out.Metadata = append(out.Metadata, project.DocRange{Type: t, Start: -1, End: -1})
		}
	}
	return out, nil
}

// splitFrontmatter separates YAML frontmatter from the body. Content
// without a frontmatter block returns a nil map and the full content.
func splitFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content, nil
	}

	rest := content[strings.Index(content, "\n")+1:]
	closeIdx := strings.Index(rest, "\n---")
	if closeIdx == -1 {
		return nil, content, nil
	}

	yamlContent := rest[:closeIdx+1]
	body := rest[closeIdx+1:]
	if nl := strings.Index(body, "\n"); nl != -1 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	var front map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &front); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return front, body, nil
}

// frontmatterTypes reads the declared doc types, accepting both
// docTypes and doc_types keys.
func frontmatterTypes(front map[string]any) []string {
	return stringList(front, "docTypes", "doc_types")
}

// frontmatterTags reads manual tags, accepting manualTags, manual_tags,
// and tags keys.
func frontmatterTags(front map[string]any) []string {
	return stringList(front, "manualTags", "manual_tags", "tags")
}

func stringList(front map[string]any, keys ...string) []string {
	if front == nil {
		return nil
	}
	for _, key := range keys {
		raw, ok := front[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// heading is one markdown heading with its 1-based line number.
type heading struct {
	level int
	line  int
	text  string
}

// scanHeadings locates catalog doc types by their headings. A heading
// matches when its text equals a doc type's slug or display name,
// case-insensitively. The range runs from the heading to the line
// before the next heading of the same or higher level.
func scanHeadings(catalog *constraint.Catalog, body string) []project.DocRange {
	lines := strings.Split(body, "\n")
	var headings []heading
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
			continue
		}
		headings = append(headings, heading{
			level: level,
			line:  i + 1,
			text:  strings.TrimSpace(trimmed[level:]),
		})
	}

	lookup := headingLookup(catalog)
	var out []project.DocRange
	seen := make(map[constraint.DocType]bool)
	for i, h := range headings {
		docType, ok := lookup[normalizeHeading(h.text)]
		if !ok || seen[docType] {
			continue
		}
		seen[docType] = true

		end := len(lines)
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.line - 1
				break
			}
		}
		out = append(out, project.DocRange{Type: string(docType), Start: h.line, End: end})
	}
	return out
}

// headingLookup maps normalized slugs and display names to doc types.
func headingLookup(catalog *constraint.Catalog) map[string]constraint.DocType {
	lookup := make(map[string]constraint.DocType, catalog.Len()*2)
	for _, docType := range catalog.DocTypes() {
		lookup[normalizeHeading(string(docType))] = docType
		lookup[normalizeHeading(catalog.DisplayName(docType))] = docType
	}
	return lookup
}

// normalizeHeading lowercases and strips characters that vary between
// slug and display forms.
func normalizeHeading(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// firstH1 returns the text of the first H1 heading.
func firstH1(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
