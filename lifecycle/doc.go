// Package lifecycle removes documents from the vector index.
//
// Manager.DeleteDocument removes one document on request. Manager.Sweep removes
// every document older than the retention period. Both go through the same
// routine: delete the document's vectors in one call, decrement the quota
// counter by their number, then delete the document record. Scheduler runs
// Sweep on a fixed interval for long-running deployments; one-shot sweeps from
// an external cron use the cleanup command instead.
package lifecycle
