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


// Package storage provides the storage abstraction layer for ragquota.
//
// This package defines the interfaces that decouple storage implementation
// from the pipelines. Two stores back the system:
//
//   - VectorStore: the capacity-limited vector index (Upsert, Query, DeleteByIDs, Count)
//   - KeyValueStore: document records and the quota counter (Get, Put, Update, Delete, List)
//
// DocumentRepository is a typed view over the document: key space of a
// KeyValueStore. The quota counter lives under its own reserved key and is
// owned by the quota package.
//
// # Backends
//
// The badger subpackage implements both interfaces on BadgerDB, including a
// brute-force vector store suitable for small indexes. The qdrant subpackage
// implements VectorStore against a Qdrant server's REST API.
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	kv := badger.NewKeyValueStore(backend)
//	vectors := badger.NewVectorStore(backend)
//
// Use in tests with in-memory storage:
//
//	kv, vectors, backend, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation
// and timeout support.
package storage
