// Package format turns raw assistant replies into renderable sections.
package format

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// SectionClass is the CSS class wrapping every rendered section.
const SectionClass = "assistant-section"

// policy only lets through the markup the widget itself produces.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "br")
	p.AllowNoAttrs().OnElements("div", "span", "br")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z][a-z0-9\- ]*$`)).OnElements("div", "span")
	return p
}

// Section is one paragraph-like block of an assistant reply.
type Section struct {
	Lines []string `json:"lines"`
}

// Text joins the section's lines with newlines.
func (s Section) Text() string {
	return strings.Join(s.Lines, "\n")
}

// HTML renders the section with escaped lines separated by <br>.
func (s Section) HTML() string {
	escaped := make([]string, len(s.Lines))
	for i, line := range s.Lines {
		escaped[i] = html.EscapeString(line)
	}
	return `<div class="` + SectionClass + `">` + strings.Join(escaped, "<br>") + `</div>`
}

// Format splits content on blank-line boundaries, where a blank line holds
// only whitespace. Each chunk is trimmed, empty chunks are dropped and the
// rest keep their single line breaks.
func Format(content string) []Section {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var sections []Section
	var chunk []string
	flush := func() {
		text := strings.TrimFunc(strings.Join(chunk, "\n"), isSpace)
		if text != "" {
			sections = append(sections, Section{Lines: strings.Split(text, "\n")})
		}
		chunk = chunk[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimFunc(line, isSpace) == "" {
			flush()
			continue
		}
		chunk = append(chunk, line)
	}
	flush()

	if sections == nil {
		return []Section{}
	}
	return sections
}

// isSpace also treats the byte order mark as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// RenderHTML concatenates the sections' markup and sanitises the result.
func RenderHTML(sections []Section) string {
	var b strings.Builder
	for _, section := range sections {
		b.WriteString(section.HTML())
	}
	return Sanitize(b.String())
}

// Sanitize strips anything outside the widget's own markup.
func Sanitize(markup string) string {
	return policy.Sanitize(markup)
}
