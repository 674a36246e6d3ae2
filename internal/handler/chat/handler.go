package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/waychat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/format"
	"github.com/zhouzirui/waychat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Get("/transcript", h.handleTranscript)
		r.Post("/messages", h.handleSendMessage)
	})
}

// MessageResponse is the body of a message round trip.
type MessageResponse struct {
	Turn     chat.Turn        `json:"turn"`
	Reply    string           `json:"reply"`
	Sections []format.Section `json:"sections,omitempty"`
	HTML     string           `json:"html,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.ProfileID)
	if err != nil {
		if errors.Is(err, chatService.ErrProfileNotFound) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session.Info())
}

// handleGetSession 查询会话状态
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Info())
}

// handleDeleteSession 删除会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript 返回会话的可见消息，系统提示不对外暴露
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	turns := session.Transcript()
	visible := make([]chat.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == chat.RoleSystem {
			continue
		}
		visible = append(visible, turn)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID(),
		"turns":     visible,
	})
}

// handleSendMessage 提交用户消息并同步等待助手回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, submitted, err := session.SubmitUserText(payload.Content)
	if err != nil {
		if errors.Is(err, chatService.ErrReplyPending) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !submitted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	reply, err := session.RequestReply(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session_id", session.ID()).Msg("completion failed")
		utils.RespondJSON(w, http.StatusBadGateway, MessageResponse{
			Turn:  turn,
			Reply: reply,
			Error: err.Error(),
		})
		return
	}

	sections := format.Format(reply)
	utils.RespondJSON(w, http.StatusOK, MessageResponse{
		Turn:     turn,
		Reply:    reply,
		Sections: sections,
		HTML:     format.RenderHTML(sections),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Session, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return session, true
}
