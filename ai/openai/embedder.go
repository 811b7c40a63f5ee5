package openai

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/poiesic/ragquota/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/poiesic/ragquota/ai/openai")

// Embedder implements ai.Embedder over an OpenAI-compatible /embeddings endpoint.
// Large inputs are split into requests of at most Config.BatchSize texts.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// newEmbedder returns the concrete type for Provider.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates an embedder from config.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in order. A response that is not aligned with texts,
// or that holds an empty vector, is reported as ai.ErrMalformedEmbedding.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "openai.EmbedTexts")
	defer span.End()
	span.SetAttributes(
		attribute.String("ragquota.embedding.model", e.model),
		attribute.Int("ragquota.embedding.texts", len(texts)),
	)

	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err == nil {
		err = ai.CheckEmbeddings(vectors, len(texts))
	}
	if err != nil {
		e.logger.Error("embedding request failed", "count", len(texts), "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(vectors) > 0 {
		span.SetAttributes(attribute.Int("ragquota.embedding.dimension", len(vectors[0])))
	}
	return vectors, nil
}
