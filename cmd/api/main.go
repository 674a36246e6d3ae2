package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/waychat/backend/internal/config"
	"github.com/zhouzirui/waychat/backend/internal/handler"
	"github.com/zhouzirui/waychat/backend/internal/logging"
	"github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/waychat/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	log.Logger = logger
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment variables only")
	}

	completer, err := ai.NewCompleter(ctx, cfg.AI, logger)
	if err != nil {
		logger.Warn().Err(err).Str("provider", string(cfg.AI.Provider)).
			Msg("completion provider unavailable, replies will report the error")
		completer = unavailable(err)
	} else {
		logger.Info().Str("provider", string(cfg.AI.Provider)).Msg("completion provider initialized")
	}

	profiles := profile.NewMemoryStore(profile.Seed())
	if _, ok := profiles.FindByID(cfg.Widget.DefaultProfile); !ok {
		logger.Fatal().Str("profile", cfg.Widget.DefaultProfile).Msg("default profile not found")
	}

	chatSvc := chatService.NewService(completer, profiles,
		chatService.WithDefaultProfile(cfg.Widget.DefaultProfile),
		chatService.WithIdleTTL(cfg.Widget.SessionIdleTTL),
		chatService.WithServiceLogger(logger),
	)

	router := handler.NewRouter(cfg, profiles, chatSvc, logger)

	if err := run(ctx, cfg, router, chatSvc, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func unavailable(cause error) ai.Completer {
	return ai.CompleterFunc(func(context.Context, []chat.Turn) (string, error) {
		return "", cause
	})
}

func run(ctx context.Context, cfg *config.Config, router http.Handler, chatSvc *chatService.Service, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("WayChat backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return chatSvc.RunEvictionLoop(gctx, evictionInterval(cfg.Widget.SessionIdleTTL))
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func evictionInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}
