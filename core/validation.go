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


package core

import "strings"

// ValidateTexts validates the texts of an ingest request.
//
// Validation rules:
//   - at least one text must be present
//   - at least one text must contain non-whitespace content
//
// NOT validated (enforced later by the quota tracker):
//   - the number of chunks the texts will produce
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return NewValidationError("texts", ErrNoTexts)
	}
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			return nil
		}
	}
	return NewValidationError("texts", ErrEmptyContent)
}

// ValidateQuery validates a query text and requested limit.
func ValidateQuery(query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return NewValidationError("query", ErrEmptyQuery)
	}
	if limit < 0 {
		return NewValidationError("limit", ErrInvalidLimit)
	}
	return nil
}

// ValidateDocumentID validates a document ID supplied for deletion.
func ValidateDocumentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("documentId", ErrEmptyDocumentID)
	}
	return nil
}
