package widget

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/middleware"
	"github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/format"
	"github.com/zhouzirui/waychat/backend/internal/service/widget"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler WebSocket聊天组件处理器
type WebSocketHandler struct {
	chatSvc   *chatservice.Service
	profiles  profile.Store
	submitKey string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// Option customises the handler.
type Option func(*WebSocketHandler)

// WithSubmitKey sets the activation key handed to every widget.
func WithSubmitKey(key string) Option {
	return func(h *WebSocketHandler) { h.submitKey = key }
}

// WithAllowedOrigins restricts websocket handshakes to the listed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(h *WebSocketHandler) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return middleware.OriginAllowed(origins, r.Header.Get("Origin"))
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *WebSocketHandler) { h.logger = logger }
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, profiles profile.Store, opts ...Option) *WebSocketHandler {
	h := &WebSocketHandler{
		chatSvc:   chatSvc,
		profiles:  profiles,
		submitKey: widget.DefaultSubmitKey,
		logger:    zerolog.Nop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type configPayload struct {
	SubmitKey string `json:"submitKey"`
	Greeting  string `json:"greeting,omitempty"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"sessionId"`
}

type outgoingOp struct {
	Op      string         `json:"op"`
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role,omitempty"`
	HTML    string         `json:"html,omitempty"`
	Open    *bool          `json:"open,omitempty"`
	Value   *string        `json:"value,omitempty"`
	Config  *configPayload `json:"config,omitempty"`
	Message string         `json:"message,omitempty"`
}

// socketView renders widget operations as JSON frames. Writes are serialised
// because the read loop and background sends share the connection.
type socketView struct {
	conn   *websocket.Conn
	logger zerolog.Logger
	mu     sync.Mutex
}

func (v *socketView) write(op outgoingOp) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(op); err != nil {
		v.logger.Debug().Err(err).Str("op", op.Op).Msg("websocket write failed")
	}
}

func (v *socketView) Append(node widget.Node) {
	v.write(outgoingOp{Op: "append", ID: node.ID, Role: string(node.Kind), HTML: widget.NodeHTML(node)})
}

func (v *socketView) Remove(id string) {
	v.write(outgoingOp{Op: "remove", ID: id})
}

func (v *socketView) ScrollToLatest() {
	v.write(outgoingOp{Op: "scroll"})
}

func (v *socketView) SetPanelOpen(open bool) {
	v.write(outgoingOp{Op: "panel", Open: &open})
}

func (v *socketView) SetInput(value string) {
	v.write(outgoingOp{Op: "input", Value: &value})
}

func (v *socketView) ReportError(err error) {
	v.write(outgoingOp{Op: "error", Message: err.Error()})
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session.Touch()
	logger := h.logger.With().Str("session_id", sessionID).Logger()
	logger.Info().Msg("widget connected")

	view := &socketView{conn: conn, logger: logger}
	ctrl := widget.New(session, view, widget.WithSubmitKey(h.submitKey), widget.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		ctrl.Wait()
		logger.Info().Msg("widget disconnected")
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go pingLoop(ctx, conn)

	h.sendConfig(view, session)
	replay(view, session.Transcript())

	for {
		var ev widget.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if !validEvent(ev) {
			view.write(outgoingOp{Op: "error", Message: "unsupported event: " + string(ev.Type)})
			continue
		}
		ctrl.Dispatch(ctx, ev)
	}
}

func (h *WebSocketHandler) sendConfig(view *socketView, session *chatservice.Session) {
	cfg := &configPayload{SubmitKey: h.submitKey, SessionID: session.ID()}
	if p, ok := h.profiles.FindByID(session.ProfileID()); ok {
		cfg.Greeting = p.Greeting
		cfg.Name = p.Name
	}
	view.write(outgoingOp{Op: "config", Config: cfg})
}

// replay renders the visible turns of a session the client joined mid-way.
func replay(view widget.View, turns []chat.Turn) {
	rendered := 0
	for i, turn := range turns {
		node := widget.Node{ID: replayID(i), Text: turn.Content}
		switch turn.Role {
		case chat.RoleUser:
			node.Kind = widget.NodeUser
		case chat.RoleAssistant:
			node.Kind = widget.NodeAssistant
			node.Sections = format.Format(turn.Content)
		default:
			continue
		}
		view.Append(node)
		rendered++
	}
	if rendered > 0 {
		view.ScrollToLatest()
	}
}

func replayID(i int) string {
	return "turn-" + strconv.Itoa(i)
}

func validEvent(ev widget.Event) bool {
	switch ev.Type {
	case widget.EventToggle, widget.EventInput, widget.EventSend, widget.EventKey:
		return true
	case widget.EventPointer:
		switch ev.Target {
		case widget.TargetToggle, widget.TargetPanel, widget.TargetOutside:
			return true
		}
	}
	return false
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
