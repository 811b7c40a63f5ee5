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


package quota

import "errors"

var (
	// ErrQuotaExceeded indicates that an admission request exceeds the available quota.
	ErrQuotaExceeded = errors.New("vector quota exceeded")

	// ErrTrackerClosed indicates that the tracker has been closed.
	ErrTrackerClosed = errors.New("quota tracker is closed")

	// ErrKeyValueStoreRequired indicates that no key-value store was provided.
	ErrKeyValueStoreRequired = errors.New("key-value store is required")

	// ErrInvalidLimit indicates a non-positive capacity limit.
	ErrInvalidLimit = errors.New("capacity limit must be positive")

	// ErrInvalidRequest indicates a negative admission request.
	ErrInvalidRequest = errors.New("requested count must not be negative")

	// ErrReservationSettled indicates a reservation that was already committed or released.
	ErrReservationSettled = errors.New("reservation already settled")
)
