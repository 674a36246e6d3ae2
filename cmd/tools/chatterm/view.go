package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/waychat/backend/internal/service/widget"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2)
)

// terminalView prints widget nodes as a scrolling transcript.
type terminalView struct {
	out     io.Writer
	name    string
	pending string
}

func newTerminalView(out io.Writer, name string) *terminalView {
	return &terminalView{out: out, name: name}
}

func (v *terminalView) Append(node widget.Node) {
	switch node.Kind {
	case widget.NodeUser:
		fmt.Fprintf(v.out, "%s\n%s\n\n", userStyle.Render("you"), bodyStyle.Render(node.Text))
	case widget.NodePending:
		v.pending = node.ID
		fmt.Fprint(v.out, dimStyle.Render("thinking..."))
	default:
		label := assistantStyle.Render(v.name)
		style := bodyStyle
		if node.Failed {
			style = bodyStyle.Foreground(errorStyle.GetForeground())
		}
		blocks := make([]string, len(node.Sections))
		for i, section := range node.Sections {
			blocks[i] = section.Text()
		}
		fmt.Fprintf(v.out, "%s\n%s\n\n", label, style.Render(strings.Join(blocks, "\n\n")))
	}
}

func (v *terminalView) Remove(id string) {
	if id == v.pending {
		v.pending = ""
		fmt.Fprint(v.out, "\r\033[K")
	}
}

func (v *terminalView) ScrollToLatest() {}

func (v *terminalView) SetPanelOpen(bool) {}

func (v *terminalView) SetInput(string) {}
