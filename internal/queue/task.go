// Package queue provides the Kafka producer and consumer for asynchronous
// batch citation verification. The producer publishes one task per citation;
// the worker consumes tasks and runs the same verification orchestrator the
// synchronous API uses, publishing each result under its correlation-scoped
// cache key.
package queue

// VerificationTask is the wire payload for one queued citation.
type VerificationTask struct {
	RawText       string `json:"raw_text"`
	CorrelationID string `json:"correlation_id"`
}
