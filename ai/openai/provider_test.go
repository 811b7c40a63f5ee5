package openai

import (
	"testing"

	"github.com/poiesic/ragquota/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434")))
	require.NoError(t, err)
	require.NotNil(t, provider)
	defer provider.Close()

	assert.NotNil(t, provider.Embedder())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}

func TestNewEmbedder_NormalizesHost(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434/"))
	_, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}
