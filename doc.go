// Package ragquota wires a quota-aware ingestion and lifecycle manager for a
// retrieval-augmented generation vector index.
//
// The index has a hard vector capacity (100 by default). Every change to the
// number of stored vectors goes through a single quota tracker, so ingestion,
// explicit deletion and age-based cleanup can run concurrently without the
// counter overshooting the limit.
//
// A Service opens the stores and builds the pipelines:
//
//	svc, err := ragquota.Open(ragquota.NewConfig(
//		ragquota.WithDataDir("./data"),
//		ragquota.WithCapacityLimit(100),
//	))
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	result := svc.Ingest(ctx, []string{text}, core.DocumentMetadata{Name: "guide.md"})
//	matches, err := svc.Searcher().Query(ctx, "how do I reset?", 5)
//
// Subpackages hold the parts: quota (admission and counting), ingestion,
// search, lifecycle (deletion and cleanup), reconcile (counter drift),
// metrics, storage backends and the HTTP server.
package ragquota
