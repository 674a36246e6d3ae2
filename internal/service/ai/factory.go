package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/config"
)

// NewCompleter builds the completer selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		return NewArkCompleter(ctx, cfg, logger.With().Str("provider", "ark").Logger())
	case config.ProviderOpenAI, "":
		if !cfg.Enabled() {
			return nil, ErrMissingCredential
		}
		client := NewOpenAIClient(cfg.APIKey).
			WithModel(cfg.Model).
			WithTemperature(cfg.Temperature).
			WithMaxCompletionTokens(cfg.MaxCompletionTokens).
			WithTimeout(cfg.HTTPTimeout).
			WithLogger(logger.With().Str("provider", "openai").Logger())
		if cfg.BaseURL != "" {
			client.WithBaseURL(cfg.BaseURL)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}
