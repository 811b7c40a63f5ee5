package search

import (
	"log/slog"

	"github.com/poiesic/ragquota/core"
)

// QueryMonitor provides hooks to observe the query process.
// Implement this interface to track intermediate steps and results during a query.
type QueryMonitor interface {
	Start(query string, limit int)
	AfterEmbedding(dimension int)
	MalformedEmbedding(err error)
	AfterVectorSearch(ids []string)
	Finish(matches []core.Match)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)        {}
func (n *noopMonitor) AfterEmbedding(_ int)         {}
func (n *noopMonitor) MalformedEmbedding(_ error)   {}
func (n *noopMonitor) AfterVectorSearch(_ []string) {}
func (n *noopMonitor) Finish(_ []core.Match)        {}

// LogMonitor reports every query step to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ QueryMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(query string, limit int) {
	m.logger().Debug("query started", "query", query, "limit", limit)
}

func (m *LogMonitor) AfterEmbedding(dimension int) {
	m.logger().Debug("query embedded", "dimension", dimension)
}

func (m *LogMonitor) MalformedEmbedding(err error) {
	m.logger().Warn("malformed query embedding", "err", err)
}

func (m *LogMonitor) AfterVectorSearch(ids []string) {
	m.logger().Debug("vector search finished", "hits", len(ids), "ids", ids)
}

func (m *LogMonitor) Finish(matches []core.Match) {
	m.logger().Debug("query finished", "matches", len(matches))
}
