package widget

import (
	"html"
	"strings"

	"github.com/zhouzirui/waychat/backend/internal/service/format"
)

// NodeKind classifies a rendered transcript entry.
type NodeKind string

const (
	NodeUser      NodeKind = "user"
	NodeAssistant NodeKind = "assistant"
	NodePending   NodeKind = "pending"
)

// Node is one entry shown in the message list.
type Node struct {
	ID       string           `json:"id"`
	Kind     NodeKind         `json:"kind"`
	Text     string           `json:"text,omitempty"`
	Sections []format.Section `json:"sections,omitempty"`
	Failed   bool             `json:"failed,omitempty"`
}

// View is everything the widget needs from a rendering surface.
type View interface {
	Append(node Node)
	Remove(id string)
	ScrollToLatest()
	SetPanelOpen(open bool)
	SetInput(value string)
}

// ErrorReporter is implemented by views that can surface errors which never
// reach the transcript, such as a rejected overlapping send.
type ErrorReporter interface {
	ReportError(err error)
}

const thinkingDots = `<span class="thinking-dots"><span>.</span><span>.</span><span>.</span></span>`

// NodeHTML renders a node as the message-list markup.
func NodeHTML(node Node) string {
	var b strings.Builder

	switch node.Kind {
	case NodeUser:
		b.WriteString(`<div class="chat-message user"><div class="message-content">`)
		b.WriteString(html.EscapeString(node.Text))
		b.WriteString(`</div></div>`)
	case NodePending:
		b.WriteString(`<div class="chat-message assistant thinking"><div class="message-content">`)
		b.WriteString(thinkingDots)
		b.WriteString(`</div></div>`)
	default:
		class := "chat-message assistant"
		if node.Failed {
			class += " failed"
		}
		b.WriteString(`<div class="` + class + `"><div class="message-content assistant-content">`)
		for _, section := range node.Sections {
			b.WriteString(section.HTML())
		}
		b.WriteString(`</div></div>`)
	}

	return format.Sanitize(b.String())
}
