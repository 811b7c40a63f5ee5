// Package server exposes the ingestion, query, deletion and quota endpoints
// over HTTP.
//
// Routes:
//
//	POST   /embed          {texts, metadata?}  -> {success, documentId, vectorIds | error}
//	POST   /query          {query, limit?}     -> ranked matches
//	POST   /context        {query, topK?}      -> {context}
//	DELETE /documents      {documentId}        -> {success, documentId, deletedCount | error}
//	GET    /metrics/quota                      -> {count, limit, percentUsed, timestamp}
//	GET    /metrics                            -> Prometheus exposition
//	GET    /healthz                            -> ok
//
// Bodies are decoded strictly: unknown fields, trailing data and missing
// required fields are rejected with 400 and {success:false,error}. A quota
// denial on /embed answers 429. Store and embedding failures answer 500.
package server
