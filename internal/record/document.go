// Package record parses and serializes relay's header/section text format.
//
// A document is a flat text file with header lines of the form
// "# KEY: VALUE" (keys case-insensitive) that may appear anywhere, and
// section blocks introduced by "## NAME" whose body runs to the next
// section marker or end of file. Section names match case-insensitively
// with spaces and underscores treated as equivalent.
package record

import (
	"regexp"
	"strings"
)

var (
	headerRegex     = regexp.MustCompile(`^#\s+([A-Za-z][A-Za-z0-9_ ]*?)\s*:\s*(.*)$`)
	sectionRegex    = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	subsectionRegex = regexp.MustCompile(`^###\s+(.+?)\s*$`)
)

// Document is the tokenized form of a record file. Keys and section names
// are stored normalized; values and bodies are stored verbatim apart from
// trimming.
type Document struct {
	headers  map[string]string
	sections map[string]string
}

// NormalizeKey maps a header key or section name to its canonical form:
// upper case, trimmed, spaces folded to underscores.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToUpper(s)
}

// Parse tokenizes text into headers and sections. It does not judge
// completeness; decoding and validation do.
func Parse(text string) *Document {
	doc := &Document{
		headers:  make(map[string]string),
		sections: make(map[string]string),
	}

	lines := strings.Split(text, "\n")

	currentSection := ""
	var body []string

	flush := func() {
		if currentSection != "" {
			doc.sections[currentSection] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = nil
	}

	for _, line := range lines {
		if m := sectionRegex.FindStringSubmatch(line); m != nil {
			flush()
			currentSection = NormalizeKey(m[1])
			continue
		}
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			doc.headers[NormalizeKey(m[1])] = strings.TrimSpace(m[2])
			// Inside a section the line stays part of the body as written.
			if currentSection == "" {
				continue
			}
		}
		if currentSection != "" {
			body = append(body, line)
		}
	}
	flush()

	return doc
}

// Header returns the value for a (case-insensitive) header key.
func (d *Document) Header(key string) (string, bool) {
	v, ok := d.headers[NormalizeKey(key)]
	return v, ok
}

// Section returns the body of a section by normalized name.
func (d *Document) Section(name string) (string, bool) {
	v, ok := d.sections[NormalizeKey(name)]
	return v, ok
}

// Subsections splits a section body into its "### NAME" blocks,
// keyed by normalized name. Text before the first marker is dropped.
func Subsections(body string) map[string]string {
	subs := make(map[string]string)
	lines := strings.Split(body, "\n")

	current := ""
	var acc []string

	flush := func() {
		if current != "" {
			subs[current] = strings.TrimSpace(strings.Join(acc, "\n"))
		}
		acc = nil
	}

	for _, line := range lines {
		if m := subsectionRegex.FindStringSubmatch(line); m != nil {
			flush()
			current = NormalizeKey(m[1])
			continue
		}
		if current != "" {
			acc = append(acc, line)
		}
	}
	flush()

	return subs
}
