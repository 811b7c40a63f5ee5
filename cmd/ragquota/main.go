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


package main

import (
	"log"
	"os"
	"time"

	"github.com/poiesic/ragquota"
	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/chunker"
	"github.com/poiesic/ragquota/lifecycle"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/search"
	"github.com/poiesic/ragquota/server"
	"github.com/poiesic/ragquota/storage/qdrant"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragquota",
		Usage: "Quota-aware ingestion and lifecycle manager for a RAG vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"RAGQUOTA_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and run scheduled cleanup",
				Action: serveCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "HTTP listen address",
						Value:   server.DefaultAddr,
						EnvVars: []string{"RAGQUOTA_ADDR"},
					},
					&cli.DurationFlag{
						Name:    "sweep-interval",
						Usage:   "Time between cleanup sweeps",
						Value:   lifecycle.DefaultSweepInterval,
						EnvVars: []string{"RAGQUOTA_SWEEP_INTERVAL"},
					},
					&cli.BoolFlag{
						Name:  "sweep-on-start",
						Usage: "Run a cleanup sweep immediately on startup",
					},
				),
			},
			{
				Name:   "cleanup",
				Usage:  "Remove documents older than the retention period",
				Action: cleanupCommand,
				Flags:  serviceFlags(),
			},
			{
				Name:   "reconcile",
				Usage:  "Compare the quota counter with the vector index",
				Action: reconcileCommand,
				Flags: append(serviceFlags(),
					&cli.BoolFlag{
						Name:  "apply",
						Usage: "Correct the quota counter to the vector store count",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to read in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for the vector store count",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "usage",
				Usage:  "Print the current quota usage",
				Action: usageCommand,
				Flags:  serviceFlags(),
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files, one document per file (- reads stdin)",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "document-id",
						Usage: "Document ID (only with a single file)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Document type recorded in metadata",
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Query the vector index",
				ArgsUsage: "TEXT...",
				Action:    queryCommand,
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
						Value: search.DefaultLimit,
					},
					&cli.BoolFlag{
						Name:  "context",
						Usage: "Print the assembled retrieval context instead of matches",
					},
				),
			},
			{
				Name:      "delete",
				Usage:     "Delete a document and release its quota",
				ArgsUsage: "DOCUMENT_ID",
				Action:    deleteCommand,
				Flags:     serviceFlags(),
			},
		},
	}
}

// serviceFlags are the store, quota and embedding settings shared by every command.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./ragquota-data",
			EnvVars: []string{"RAGQUOTA_DB"},
		},
		&cli.IntFlag{
			Name:    "capacity",
			Usage:   "Maximum number of vectors in the index",
			Value:   quota.DefaultLimit,
			EnvVars: []string{"RAGQUOTA_CAPACITY"},
		},
		&cli.IntFlag{
			Name:    "retention-days",
			Usage:   "Days a document is kept before cleanup removes it",
			Value:   lifecycle.DefaultRetentionDays,
			EnvVars: []string{"RAGQUOTA_RETENTION_DAYS"},
		},
		&cli.IntFlag{
			Name:    "chunk-size",
			Usage:   "Maximum chunk length in characters",
			Value:   chunker.DefaultMaxSize,
			EnvVars: []string{"RAGQUOTA_CHUNK_SIZE"},
		},
		&cli.IntFlag{
			Name:    "context-top-k",
			Usage:   "Number of chunks joined into a retrieval context",
			Value:   search.DefaultContextTopK,
			EnvVars: []string{"RAGQUOTA_CONTEXT_TOP_K"},
		},
		&cli.StringFlag{
			Name:    "vector-backend",
			Usage:   "Vector store backend (badger, qdrant)",
			Value:   string(ragquota.BackendBadger),
			EnvVars: []string{"RAGQUOTA_VECTOR_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "qdrant-endpoint",
			Usage:   "Qdrant REST endpoint",
			Value:   "http://localhost:6333",
			EnvVars: []string{"RAGQUOTA_QDRANT_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "qdrant-collection",
			Usage:   "Qdrant collection name",
			Value:   qdrant.DefaultCollection,
			EnvVars: []string{"RAGQUOTA_QDRANT_COLLECTION"},
		},
		&cli.IntFlag{
			Name:    "qdrant-dimension",
			Usage:   "Vector dimension used when creating the Qdrant collection",
			Value:   qdrant.DefaultDimension,
			EnvVars: []string{"RAGQUOTA_QDRANT_DIMENSION"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   ai.DefaultConfig().EmbeddingHost,
			EnvVars: []string{"RAGQUOTA_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   ai.DefaultConfig().EmbeddingModel,
			EnvVars: []string{"RAGQUOTA_EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "embedding-token",
			Usage:   "API token for the embedding service",
			EnvVars: []string{"RAGQUOTA_EMBEDDING_TOKEN", "OPENAI_API_KEY"},
		},
	}
}
