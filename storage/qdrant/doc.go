// Package qdrant implements storage.VectorStore against the REST API of a
// Qdrant server. Record IDs are hashed into numeric point IDs and the original
// ID is kept in the point payload together with the chunk metadata.
package qdrant
