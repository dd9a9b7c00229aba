package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"eduvia/internal/config"
	"eduvia/internal/credentials"
)

// ModelFactory returns a chat model bound to one credential.
type ModelFactory func(ctx context.Context, cred credentials.Credential) (model.BaseChatModel, error)

type modelBuilder func(ctx context.Context, token string) (model.BaseChatModel, error)

// NewModelFactory returns a factory for the configured provider. Models are
// built once per credential and reused across requests.
func NewModelFactory(cfg config.ProviderConfig) (ModelFactory, error) {
	build, err := builderFor(cfg)
	if err != nil {
		return nil, err
	}
	cache := &modelCache{
		build:  build,
		models: make(map[credentials.Credential]model.BaseChatModel),
	}
	return cache.get, nil
}

func builderFor(cfg config.ProviderConfig) (modelBuilder, error) {
	modelName := cfg.Model
	switch cfg.Name {
	case "gemini":
		return func(ctx context.Context, token string) (model.BaseChatModel, error) {
			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  token,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return nil, fmt.Errorf("new gemini client: %w", err)
			}
			return gemini.NewChatModel(ctx, &gemini.Config{
				Client: client,
				Model:  modelName,
			})
		}, nil
	case "openai":
		return func(ctx context.Context, token string) (model.BaseChatModel, error) {
			return openai.NewChatModel(ctx, &openai.ChatModelConfig{
				BaseURL: cfg.BaseURL,
				Model:   modelName,
				APIKey:  token,
			})
		}, nil
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURL := cfg.BaseURL
			baseURLPtr = &baseURL
		}
		return func(ctx context.Context, token string) (model.BaseChatModel, error) {
			return claude.NewChatModel(ctx, &claude.Config{
				APIKey:    token,
				Model:     modelName,
				BaseURL:   baseURLPtr,
				MaxTokens: 3000,
			})
		}, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
}

type modelCache struct {
	build  modelBuilder
	mu     sync.Mutex
	models map[credentials.Credential]model.BaseChatModel
}

func (c *modelCache) get(_ context.Context, cred credentials.Credential) (model.BaseChatModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[cred]; ok {
		return m, nil
	}
	// Models outlive the request that first asks for them.
	m, err := c.build(context.Background(), string(cred))
	if err != nil {
		return nil, err
	}
	c.models[cred] = m
	return m, nil
}
