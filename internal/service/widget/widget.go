// Package widget drives the chat panel: it reacts to UI events, runs the
// session's request/response cycle and tells a View what to render.
package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/format"
)

const (
	// DefaultSubmitKey activates a send from the input field.
	DefaultSubmitKey = "Enter"
	// DefaultEmptyReplyText is shown when a reply has nothing to render.
	DefaultEmptyReplyText = "Sorry, no response from the assistant."
)

// Target says where a pointer press landed.
type Target string

const (
	TargetToggle  Target = "toggle"
	TargetPanel   Target = "panel"
	TargetOutside Target = "outside"
)

// EventType enumerates UI events a Widget accepts.
type EventType string

const (
	EventToggle  EventType = "toggle"
	EventPointer EventType = "pointer"
	EventInput   EventType = "input"
	EventSend    EventType = "send"
	EventKey     EventType = "key"
)

// Event is a UI event forwarded from the rendering surface.
type Event struct {
	Type   EventType `json:"type"`
	Target Target    `json:"target,omitempty"`
	Key    string    `json:"key,omitempty"`
	Text   string    `json:"text,omitempty"`
}

// Widget binds one Session to one View.
type Widget struct {
	session    *chat.Session
	view       View
	submitKey  string
	emptyReply string
	logger     zerolog.Logger

	mu    sync.Mutex
	open  bool
	input string

	sends sync.WaitGroup
}

// Option customises a Widget.
type Option func(*Widget)

// WithSubmitKey changes the activation key.
func WithSubmitKey(key string) Option {
	return func(w *Widget) {
		if key != "" {
			w.submitKey = key
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Widget) { w.logger = logger }
}

// WithEmptyReplyText replaces the placeholder for replies without sections.
func WithEmptyReplyText(text string) Option {
	return func(w *Widget) { w.emptyReply = text }
}

// New creates a closed widget with an empty input.
func New(session *chat.Session, view View, opts ...Option) *Widget {
	w := &Widget{
		session:    session,
		view:       view,
		submitKey:  DefaultSubmitKey,
		emptyReply: DefaultEmptyReplyText,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Session returns the bound session.
func (w *Widget) Session() *chat.Session { return w.session }

// SubmitKey returns the activation key.
func (w *Widget) SubmitKey() string { return w.submitKey }

// Open reports whether the panel is shown.
func (w *Widget) Open() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Input returns the pending input text.
func (w *Widget) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// Toggle flips the panel between open and closed.
func (w *Widget) Toggle() {
	w.mu.Lock()
	w.open = !w.open
	open := w.open
	w.mu.Unlock()

	w.view.SetPanelOpen(open)
}

// PointerDown closes an open panel when the press landed outside both the
// panel and the toggle control.
func (w *Widget) PointerDown(target Target) {
	if target != TargetOutside {
		return
	}

	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return
	}
	w.open = false
	w.mu.Unlock()

	w.view.SetPanelOpen(false)
}

// SetInput records the input field's current text.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	w.input = text
	w.mu.Unlock()
}

// KeyDown reports whether key is the activation key. The caller suppresses
// the key's default action and sends when it returns true.
func (w *Widget) KeyDown(key string) bool {
	return key == w.submitKey
}

// Send submits the pending input and renders the round trip. Blank input is
// ignored. While a reply is outstanding it returns chat.ErrReplyPending and
// keeps the input. A failed completion is rendered as a failed assistant
// node and its error is returned.
func (w *Widget) Send(ctx context.Context) error {
	return w.send(ctx, w.Input())
}

func (w *Widget) send(ctx context.Context, text string) error {
	turn, ok, err := w.session.SubmitUserText(text)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if w.clearInput(text) {
		w.view.SetInput("")
	}
	w.view.Append(Node{ID: uuid.NewString(), Kind: NodeUser, Text: turn.Content})
	w.view.ScrollToLatest()

	pending := Node{ID: uuid.NewString(), Kind: NodePending}
	w.view.Append(pending)
	w.view.ScrollToLatest()

	reply, replyErr := w.session.RequestReply(ctx)
	w.view.Remove(pending.ID)

	node := Node{ID: uuid.NewString(), Kind: NodeAssistant, Text: reply, Sections: format.Format(reply)}
	if replyErr != nil {
		node.Failed = true
	} else if len(node.Sections) == 0 {
		node.Sections = format.Format(w.emptyReply)
	}
	w.view.Append(node)
	w.view.ScrollToLatest()

	return replyErr
}

// clearInput empties the input unless it changed after text was read.
func (w *Widget) clearInput(text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.input != text {
		return false
	}
	w.input = ""
	return true
}

// Dispatch applies a UI event and reports whether the surface should
// suppress the event's default action. Every event marks the session as in
// use. Sends run in the background; Wait blocks until they finish.
func (w *Widget) Dispatch(ctx context.Context, ev Event) bool {
	w.session.Touch()
	switch ev.Type {
	case EventToggle:
		w.Toggle()
	case EventPointer:
		w.PointerDown(ev.Target)
	case EventInput:
		w.SetInput(ev.Text)
	case EventSend:
		w.sendAsync(ctx)
	case EventKey:
		if !w.KeyDown(ev.Key) {
			return false
		}
		w.sendAsync(ctx)
		return true
	default:
		w.logger.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown widget event")
	}
	return false
}

// Wait blocks until every background send has finished.
func (w *Widget) Wait() {
	w.sends.Wait()
}

func (w *Widget) sendAsync(ctx context.Context) {
	text := w.Input()
	w.sends.Add(1)
	go func() {
		defer w.sends.Done()
		if err := w.send(ctx, text); err != nil {
			w.logger.Warn().Err(err).Str("session_id", w.session.ID()).Msg("widget send failed")
			if reporter, ok := w.view.(ErrorReporter); ok && errors.Is(err, chat.ErrReplyPending) {
				reporter.ReportError(err)
			}
		}
	}()
}
