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


// Package search provides query-time retrieval over the vector index.
//
// Searcher.Query embeds the query text as a single-item batch, asks the vector
// store for the nearest chunks and shapes each hit into core.Match. The result
// limit is clamped to the index capacity. A malformed embedding response yields
// an empty result instead of an error.
//
// Searcher.BuildContext turns the top hits into one prompt-context string for
// answer synthesis, joining chunk texts with ContextSeparator.
package search
