// Package metrics defines quota metric events and the sinks that receive them.
//
// Every counter mutation and every refused admission produces one Event.
// Emitters never fail and are never consulted by control flow. LogEmitter
// writes one structured record per event with message quota_metric, which
// log-based monitoring can filter on. PrometheusEmitter mirrors events into
// gauges and a per-kind counter. Multi fans out and Async moves delivery onto
// a bounded worker pool.
package metrics
