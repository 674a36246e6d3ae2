package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	modelchat "github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/widget"
)

type testServer struct {
	*httptest.Server
	svc *chatservice.Service
}

func newTestServer(t *testing.T, completer ai.Completer, opts ...Option) *testServer {
	t.Helper()
	store := profile.NewMemoryStore(profile.Seed())
	svc := chatservice.NewService(completer, store)

	r := chi.NewRouter()
	NewWebSocketHandler(svc, store, opts...).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc}
}

func (s *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/session/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readOp(t *testing.T, conn *websocket.Conn) outgoingOp {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var op outgoingOp
	if err := conn.ReadJSON(&op); err != nil {
		t.Fatalf("read op: %v", err)
	}
	return op
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(outgoingOp) bool) []outgoingOp {
	t.Helper()
	var ops []outgoingOp
	for i := 0; i < 32; i++ {
		op := readOp(t, conn)
		ops = append(ops, op)
		if match(op) {
			return ops
		}
	}
	t.Fatal("expected op never arrived")
	return nil
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := newTestServer(t, ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "Here's an idea:\n\nOpen on steam rising...", nil
	}), WithSubmitKey("Enter"))

	session, err := srv.svc.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	conn := srv.dial(t, session.ID())

	cfg := readOp(t, conn)
	if cfg.Op != "config" || cfg.Config == nil {
		t.Fatalf("expected config op first, got %+v", cfg)
	}
	if cfg.Config.SubmitKey != "Enter" || cfg.Config.Greeting == "" {
		t.Fatalf("unexpected config %+v", cfg.Config)
	}

	if err := conn.WriteJSON(widget.Event{Type: widget.EventToggle}); err != nil {
		t.Fatalf("write toggle: %v", err)
	}
	panel := readOp(t, conn)
	if panel.Op != "panel" || panel.Open == nil || !*panel.Open {
		t.Fatalf("expected panel open, got %+v", panel)
	}

	conn.WriteJSON(widget.Event{Type: widget.EventInput, Text: "Make me an ad for a coffee shop"})
	conn.WriteJSON(widget.Event{Type: widget.EventKey, Key: "Enter"})

	ops := readUntil(t, conn, func(op outgoingOp) bool {
		return op.Op == "append" && op.Role == string(widget.NodeAssistant)
	})

	var names []string
	for _, op := range ops {
		names = append(names, op.Op)
	}
	want := []string{"input", "append", "scroll", "append", "scroll", "remove", "append"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected op order %v", names)
	}
	if ops[3].Role != string(widget.NodePending) || ops[5].ID != ops[3].ID {
		t.Fatalf("pending node not removed: %+v / %+v", ops[3], ops[5])
	}
	last := ops[len(ops)-1]
	if strings.Count(last.HTML, `class="assistant-section"`) != 2 {
		t.Fatalf("unexpected assistant html %s", last.HTML)
	}

	if session.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", session.Len())
	}
}

func TestWebSocketReplaysTranscript(t *testing.T) {
	srv := newTestServer(t, ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "earlier reply", nil
	}))

	session, _ := srv.svc.CreateSession(context.Background(), "")
	session.SubmitUserText("hello")
	if _, err := session.RequestReply(context.Background()); err != nil {
		t.Fatalf("RequestReply err: %v", err)
	}

	conn := srv.dial(t, session.ID())
	readOp(t, conn) // config

	user := readOp(t, conn)
	assistant := readOp(t, conn)
	if user.Op != "append" || user.Role != "user" || !strings.Contains(user.HTML, "hello") {
		t.Fatalf("unexpected user replay %+v", user)
	}
	if assistant.Role != "assistant" || !strings.Contains(assistant.HTML, "earlier reply") {
		t.Fatalf("unexpected assistant replay %+v", assistant)
	}
	if op := readOp(t, conn); op.Op != "scroll" {
		t.Fatalf("expected scroll after replay, got %+v", op)
	}
}

func TestWebSocketRejectsUnknownEvent(t *testing.T) {
	srv := newTestServer(t, ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "ok", nil
	}))
	session, _ := srv.svc.CreateSession(context.Background(), "")
	conn := srv.dial(t, session.ID())
	readOp(t, conn)

	conn.WriteJSON(map[string]string{"type": "explode"})
	op := readOp(t, conn)
	if op.Op != "error" || !strings.Contains(op.Message, "explode") {
		t.Fatalf("expected error op, got %+v", op)
	}

	conn.WriteJSON(widget.Event{Type: widget.EventPointer, Target: "nowhere"})
	if op := readOp(t, conn); op.Op != "error" {
		t.Fatalf("expected error op for bad target, got %+v", op)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv := newTestServer(t, ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "ok", nil
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	srv := newTestServer(t, ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "ok", nil
	}), WithAllowedOrigins([]string{"https://shop.example"}))
	session, _ := srv.svc.CreateSession(context.Background(), "")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/" + session.ID() + "/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
