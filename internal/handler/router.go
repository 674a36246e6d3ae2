package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/waychat/backend/internal/config"
	"github.com/zhouzirui/waychat/backend/internal/handler/chat"
	profileHandler "github.com/zhouzirui/waychat/backend/internal/handler/profile"
	widgetHandler "github.com/zhouzirui/waychat/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/waychat/backend/internal/middleware"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	chatService "github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/web"
	"github.com/zhouzirui/waychat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, profiles profile.Store, chatSvc *chatService.Service, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(accessLog())
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	web.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		profileHandler.New(profiles).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		widgetHandler.NewWebSocketHandler(chatSvc, profiles,
			widgetHandler.WithSubmitKey(cfg.Widget.SubmitKey),
			widgetHandler.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			widgetHandler.WithLogger(logger),
		).RegisterRoutes(api)
	})

	return r
}

func accessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
}
