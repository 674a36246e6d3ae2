package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(sections []Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Text()
	}
	return out
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "two sections", content: "A\n\nB", want: []string{"A", "B"}},
		{name: "single newline stays in section", content: "line1\nline2", want: []string{"line1\nline2"}},
		{name: "whitespace only", content: "  \n\n  ", want: []string{}},
		{name: "empty", content: "", want: []string{}},
		{name: "blank line with spaces", content: "A\n   \t\nB", want: []string{"A", "B"}},
		{name: "blank line with no-break space", content: "A\n\u00a0\nB", want: []string{"A", "B"}},
		{name: "blank line with vertical tab", content: "A\n\v\nB", want: []string{"A", "B"}},
		{name: "blank line with em space", content: "A\n\u2003\nB", want: []string{"A", "B"}},
		{name: "blank line with byte order mark", content: "A\n\ufeff\nB", want: []string{"A", "B"}},
		{name: "many blank lines collapse", content: "A\n\n\n\nB", want: []string{"A", "B"}},
		{name: "trims chunks", content: "  A  \n\n  B\nC  ", want: []string{"A", "B\nC"}},
		{name: "crlf", content: "A\r\n\r\nB\r\nC", want: []string{"A", "B\nC"}},
		{name: "no boundary", content: "just one line", want: []string{"just one line"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, texts(Format(tc.content)))
		})
	}
}

func TestFormatLines(t *testing.T) {
	sections := Format("Script:\nOpen on steam\nCut to barista\n\nCTA: Visit today")
	require.Len(t, sections, 2)
	assert.Equal(t, []string{"Script:", "Open on steam", "Cut to barista"}, sections[0].Lines)
	assert.Equal(t, []string{"CTA: Visit today"}, sections[1].Lines)
}

func TestRenderHTML(t *testing.T) {
	got := RenderHTML(Format("A\n\nline1\nline2"))
	assert.Equal(t, `<div class="assistant-section">A</div><div class="assistant-section">line1<br>line2</div>`, got)
}

func TestRenderHTMLEscapesReplyText(t *testing.T) {
	got := RenderHTML(Format("<script>alert(1)</script>\n\n<b>bold</b>"))

	assert.NotContains(t, got, "<script>")
	assert.NotContains(t, got, "<b>")
	assert.Contains(t, got, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Equal(t, 2, strings.Count(got, `class="assistant-section"`))
}

func TestRenderHTMLEmpty(t *testing.T) {
	assert.Empty(t, RenderHTML(Format(" \n ")))
}

func TestSanitize(t *testing.T) {
	in := `<div class="chat-message user" onclick="x()"><span class="thinking-dots">.</span><img src=x></div>`
	got := Sanitize(in)

	assert.Equal(t, `<div class="chat-message user"><span class="thinking-dots">.</span></div>`, got)
}
