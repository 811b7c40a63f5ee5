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


// Package reconcile detects drift between the quota counter and the vector index.
//
// The counter is only ever changed by quota.Tracker.AdjustCount and clamps at
// zero, so failed compensations or manual index edits can leave it out of step
// with what the vector store actually holds. Reconciler compares three figures:
//   - the tracked counter
//   - the vector store's own count
//   - the number of vector IDs listed by document records
//
// It reports the difference and, when asked to apply, moves the counter to the
// vector store's count through AdjustCount with a reconcile_drift_{delta}
// reason, so the correction is emitted like every other quota change.
//
// # Usage
//
//	r, err := reconcile.NewReconciler(vectors, documents, tracker, nil, os.Stderr)
//	report, err := r.Run(ctx, apply)
package reconcile
