// Package ingestion provides the pipeline that admits documents into the vector index.
//
// Pipeline.Ingest runs a fixed sequence for each call:
//   - chunk every input text and flatten the chunks into one batch
//   - reserve quota for the whole batch (all or nothing)
//   - embed the batch in a single call
//   - upsert all vector records in a single call
//   - count the stored vectors against the quota
//   - write the document record listing every vector ID
//
// A denied reservation stores nothing. A failed upsert leaves the counter
// untouched. When the document record cannot be written the stored vectors are
// deleted and their count reversed; vectors that cannot be removed are logged
// with their IDs.
package ingestion
