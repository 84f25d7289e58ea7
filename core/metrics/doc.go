// Package metrics defines the sink interfaces used to export gateway
// observations. Sinks like PromSink and InfluxSink record sub-request
// results, run summaries and directory refreshes, and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
