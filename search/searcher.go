package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultLimit is the number of matches returned when no limit is given.
	DefaultLimit = 5

	// DefaultContextTopK is the number of chunks BuildContext uses when none is given.
	DefaultContextTopK = 4

	// ContextSeparator joins chunk texts in a built context.
	ContextSeparator = "\n\n---\n\n"
)

var tracer = otel.Tracer("github.com/poiesic/ragquota/search")

// Searcher runs similarity queries against the vector index.
type Searcher struct {
	vectors  storage.VectorStore
	embedder ai.Embedder
	capacity int
	topK     int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithCapacity sets the ceiling applied to query limits.
// Default is quota.DefaultLimit.
func WithCapacity(capacity int) Option {
	return func(s *Searcher) error {
		if capacity <= 0 {
			return fmt.Errorf("capacity must be positive, got %d", capacity)
		}
		s.capacity = capacity
		return nil
	}
}

// WithContextTopK sets the number of chunks BuildContext uses when none is given.
// Default is DefaultContextTopK.
func WithContextTopK(k int) Option {
	return func(s *Searcher) error {
		if k <= 0 {
			return fmt.Errorf("context topK must be positive, got %d", k)
		}
		s.topK = k
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:  vectors,
		embedder: embedder,
		capacity: quota.DefaultLimit,
		topK:     DefaultContextTopK,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// clampLimit maps a requested limit into [1, capacity]. Non-positive requests get DefaultLimit.
func (s *Searcher) clampLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return min(limit, s.capacity)
}

// Query returns up to limit chunks most similar to text, best first.
func (s *Searcher) Query(ctx context.Context, text string, limit int) ([]core.Match, error) {
	return s.QueryWithMonitor(ctx, text, limit, nil)
}

// QueryWithMonitor is Query with a monitor receiving callbacks at each step.
func (s *Searcher) QueryWithMonitor(ctx context.Context, text string, limit int, monitor QueryMonitor) (matches []core.Match, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateQuery(text, 0); err != nil {
		return nil, err
	}
	limit = s.clampLimit(limit)

	ctx, span := tracer.Start(ctx, "search.Query")
	defer func() {
		span.SetAttributes(
			attribute.Int("ragquota.query.limit", limit),
			attribute.Int("ragquota.query.matches", len(matches)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	monitor.Start(text, limit)

	embeddings, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err == nil {
		err = ai.CheckEmbeddings(embeddings, 1)
	}
	if errors.Is(err, ai.ErrMalformedEmbedding) {
		s.logger.Warn("discarding malformed query embedding", "err", err)
		monitor.MalformedEmbedding(err)
		monitor.Finish(nil)
		return []core.Match{}, nil
	}
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	monitor.AfterEmbedding(len(embeddings[0]))

	stored, err := s.vectors.Query(ctx, embeddings[0], limit)
	if err != nil {
		s.logger.Error("error querying for similar vectors", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrVectorSearchFailed, err)
	}

	ids := make([]string, len(stored))
	matches = make([]core.Match, len(stored))
	for i, m := range stored {
		ids[i] = m.ID
		matches[i] = m.Project()
	}
	monitor.AfterVectorSearch(ids)
	monitor.Finish(matches)

	return matches, nil
}

// BuildContext joins the texts of the topK best chunks for text into one
// string separated by ContextSeparator. Full chunk text is preferred over the
// preview. Returns an empty string when nothing matches.
func (s *Searcher) BuildContext(ctx context.Context, text string, topK int) (string, error) {
	if topK <= 0 {
		topK = s.topK
	}

	matches, err := s.Query(ctx, text, topK)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		chunk := m.Metadata.FullText
		if chunk == "" {
			chunk = m.Metadata.Text
		}
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		parts = append(parts, chunk)
	}
	return strings.Join(parts, ContextSeparator), nil
}
