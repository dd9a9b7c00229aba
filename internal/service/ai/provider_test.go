package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduvia/internal/config"
	"eduvia/internal/credentials"
	"eduvia/internal/testutil"
)

func configFor(name string) config.ProviderConfig {
	return config.ProviderConfig{Name: name, Model: "m"}
}

func TestModelCacheBuildsOncePerCredential(t *testing.T) {
	builds := map[string]int{}
	cache := &modelCache{
		build: func(_ context.Context, token string) (model.BaseChatModel, error) {
			builds[token]++
			return &testutil.FakeModel{}, nil
		},
		models: make(map[credentials.Credential]model.BaseChatModel),
	}

	first, err := cache.get(context.Background(), "a")
	require.NoError(t, err)
	again, err := cache.get(context.Background(), "a")
	require.NoError(t, err)
	other, err := cache.get(context.Background(), "b")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, builds)
}

func TestBuilderForKnownProviders(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "claude"} {
		build, err := builderFor(configFor(name))
		require.NoError(t, err, name)
		assert.NotNil(t, build, name)
	}
}

func TestBuilderForRejectsUnknownProvider(t *testing.T) {
	_, err := builderFor(configFor("llama"))
	require.Error(t, err)
}
