// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ragquota

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/chunker"
	"github.com/poiesic/ragquota/lifecycle"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/search"
	"github.com/poiesic/ragquota/storage/qdrant"
)

// VectorBackend names the vector store implementation.
type VectorBackend string

const (
	// BackendBadger keeps vectors in the local badger database.
	BackendBadger VectorBackend = "badger"

	// BackendQdrant keeps vectors in a Qdrant collection.
	BackendQdrant VectorBackend = "qdrant"
)

// Config holds the settings of a Service.
type Config struct {
	// DataDir is the badger database directory.
	DataDir string

	// InMemory opens badger without touching disk. DataDir is ignored.
	InMemory bool

	// CapacityLimit is the maximum number of vectors in the index.
	CapacityLimit int

	// RetentionDays is how long a document is kept before cleanup removes it.
	RetentionDays int

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// ContextTopK is the number of chunks joined into a retrieval context.
	ContextTopK int

	// SweepInterval is the time between cleanup sweeps when serving.
	SweepInterval time.Duration

	// VectorBackend selects where vectors are stored.
	VectorBackend VectorBackend

	QdrantEndpoint   string
	QdrantCollection string
	QdrantDimension  int

	// MetricWorkers sizes the pool that writes quota metric log records.
	MetricWorkers int

	// AI configures the embedding service.
	AI *ai.Config
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDataDir sets the badger database directory.
func WithDataDir(dir string) ConfigOption {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithInMemory keeps all state in memory.
func WithInMemory(enabled bool) ConfigOption {
	return func(c *Config) {
		c.InMemory = enabled
	}
}

// WithCapacityLimit sets the vector capacity.
func WithCapacityLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.CapacityLimit = limit
	}
}

// WithRetentionDays sets the document retention period.
func WithRetentionDays(days int) ConfigOption {
	return func(c *Config) {
		c.RetentionDays = days
	}
}

// WithChunkSize sets the maximum chunk length.
func WithChunkSize(size int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = size
	}
}

// WithContextTopK sets the number of chunks in a retrieval context.
func WithContextTopK(k int) ConfigOption {
	return func(c *Config) {
		c.ContextTopK = k
	}
}

// WithSweepInterval sets the time between cleanup sweeps.
func WithSweepInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		c.SweepInterval = interval
	}
}

// WithQdrant stores vectors in a Qdrant collection.
func WithQdrant(endpoint, collection string, dimension int) ConfigOption {
	return func(c *Config) {
		c.VectorBackend = BackendQdrant
		c.QdrantEndpoint = endpoint
		if collection != "" {
			c.QdrantCollection = collection
		}
		if dimension > 0 {
			c.QdrantDimension = dimension
		}
	}
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) ConfigOption {
	return func(c *Config) {
		c.AI = cfg
	}
}

// DefaultConfig returns a Config for a local badger deployment with capacity 100.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          filepath.Join(".", "ragquota-data"),
		CapacityLimit:    quota.DefaultLimit,
		RetentionDays:    lifecycle.DefaultRetentionDays,
		ChunkSize:        chunker.DefaultMaxSize,
		ContextTopK:      search.DefaultContextTopK,
		SweepInterval:    lifecycle.DefaultSweepInterval,
		VectorBackend:    BackendBadger,
		QdrantCollection: qdrant.DefaultCollection,
		QdrantDimension:  qdrant.DefaultDimension,
		AI:               ai.DefaultConfig(),
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if !c.InMemory && c.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if c.CapacityLimit <= 0 {
		errs = append(errs, fmt.Errorf("capacity limit must be positive, got %d", c.CapacityLimit))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("retention days must be positive, got %d", c.RetentionDays))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.ContextTopK <= 0 {
		errs = append(errs, fmt.Errorf("context topK must be positive, got %d", c.ContextTopK))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}

	switch c.VectorBackend {
	case BackendBadger:
	case BackendQdrant:
		if c.QdrantEndpoint == "" {
			errs = append(errs, errors.New("qdrant endpoint is required"))
		}
		if c.QdrantDimension <= 0 {
			errs = append(errs, fmt.Errorf("qdrant dimension must be positive, got %d", c.QdrantDimension))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q", c.VectorBackend))
	}

	if c.AI == nil {
		errs = append(errs, errors.New("ai config is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
