package ai

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/config"
	"github.com/zhouzirui/waychat/backend/internal/model/chat"
)

// generator is the slice of an eino chat model the ark completer needs.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ArkCompleter answers through a Volcengine Ark model driven by eino.
type ArkCompleter struct {
	model       generator
	temperature float32
	maxTokens   int
	logger      zerolog.Logger
}

// NewArkCompleter builds an Ark chat model from cfg.
func NewArkCompleter(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*ArkCompleter, error) {
	ac := cfg.Ark
	if ac.Model == "" || (ac.APIKey == "" && (ac.AccessKey == "" || ac.SecretKey == "")) {
		return nil, ErrMissingCredential
	}

	temperature := float32(cfg.Temperature)
	maxTokens := cfg.MaxCompletionTokens

	arkCfg := &ark.ChatModelConfig{
		BaseURL:     ac.BaseURL,
		Region:      ac.Region,
		APIKey:      ac.APIKey,
		AccessKey:   ac.AccessKey,
		SecretKey:   ac.SecretKey,
		Model:       ac.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}

	return newArkCompleter(chatModel, temperature, maxTokens, logger), nil
}

func newArkCompleter(gen generator, temperature float32, maxTokens int, logger zerolog.Logger) *ArkCompleter {
	return &ArkCompleter{
		model:       gen,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Complete converts the transcript to eino messages and runs one generation.
func (c *ArkCompleter) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	start := time.Now()
	resp, err := c.model.Generate(ctx, toSchemaMessages(turns),
		model.WithTemperature(c.temperature),
		model.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", errors.Wrap(err, "ark generate")
	}
	if resp == nil {
		return "", ErrNoReply
	}

	c.logger.Debug().
		Int("messages", len(turns)).
		Int("length", len(resp.Content)).
		Dur("latency", time.Since(start)).
		Msg("ark completion received")

	return resp.Content, nil
}

func toSchemaMessages(turns []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
