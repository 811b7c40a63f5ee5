package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/storage"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "ragquota"

	// DefaultDimension is the vector size used when creating the collection.
	DefaultDimension = 768
)

// ErrEndpointRequired is returned when no endpoint is given.
var ErrEndpointRequired = errors.New("qdrant endpoint is required")

// Option configures a Store.
type Option func(*Store)

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		s.collection = name
	}
}

// WithDimension sets the vector size used when the collection is created.
func WithDimension(dimension int) Option {
	return func(s *Store) {
		s.dimension = dimension
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store implements storage.VectorStore using Qdrant's REST API.
type Store struct {
	endpoint   string
	collection string
	dimension  int
	client     *http.Client
	logger     *slog.Logger

	ensureMu sync.Mutex
	ensured  bool
}

var _ storage.VectorStore = (*Store)(nil)

// payload is the point payload. The string record ID is kept because point IDs are hashes.
type payload struct {
	ID       string             `json:"id"`
	Metadata core.ChunkMetadata `json:"metadata"`
}

// NewStore creates a Qdrant-backed vector store.
func NewStore(endpoint string, opts ...Option) (*Store, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	s := &Store{
		endpoint:   strings.TrimRight(endpoint, "/"),
		collection: DefaultCollection,
		dimension:  DefaultDimension,
		client:     &http.Client{},
		logger:     slog.Default().With("component", "qdrant"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dimension <= 0 {
		return nil, fmt.Errorf("qdrant dimension must be positive, got %d", s.dimension)
	}
	return s, nil
}

// pointID produces a deterministic uint64 point ID for a record ID.
func pointID(id string) uint64 {
	return core.IDFromContent(id)
}

// ensureCollection creates the collection if it doesn't exist.
// A failed attempt is retried on the next call.
func (s *Store) ensureCollection(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured {
		return nil
	}

	url := s.collectionURL("")
	resp, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		s.ensured = true
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	resp, err = s.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create collection"); err != nil {
		return err
	}
	s.logger.Info("created collection", "collection", s.collection, "dimension", s.dimension)
	s.ensured = true
	return nil
}

// Upsert stores all records in a single request.
func (s *Store) Upsert(ctx context.Context, records ...core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]any, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			return fmt.Errorf("%w: vector record without id", storage.ErrInvalidQuery)
		}
		if len(record.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has %d, collection has %d",
				storage.ErrDimensionMismatch, record.ID, len(record.Vector), s.dimension)
		}
		points = append(points, map[string]any{
			"id":      pointID(record.ID),
			"vector":  record.Vector,
			"payload": payload{ID: record.ID, Metadata: record.Metadata},
		})
	}

	resp, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "upsert")
}

// Query searches for the topK nearest points.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]core.StoredMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	resp, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "search"); err != nil {
		return nil, err
	}

	var result struct {
		Result []struct {
			ID      uint64  `json:"id"`
			Score   float32 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]core.StoredMatch, 0, len(result.Result))
	for _, r := range result.Result {
		matches = append(matches, core.StoredMatch{
			ID:       r.Payload.ID,
			Score:    r.Score,
			Metadata: r.Payload.Metadata,
		})
	}
	return matches, nil
}

// DeleteByIDs removes points in a single request.
func (s *Store) DeleteByIDs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]uint64, 0, len(ids))
	for _, id := range ids {
		points = append(points, pointID(id))
	}
	resp, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), map[string]any{"points": points})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "delete")
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "count"); err != nil {
		return 0, err
	}

	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return result.Result.Count, nil
}

// Health checks that the Qdrant server is reachable.
func (s *Store) Health(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, s.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant unhealthy: %s", resp.Status)
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.endpoint, s.collection, suffix)
}

func (s *Store) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("qdrant %s failed: %s %s", op, resp.Status, string(b))
}
