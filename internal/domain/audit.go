package domain

import "time"

// AuditStatus marks a recorded cross-party call as succeeded or failed.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailed  AuditStatus = "failed"
)

// AuditEvent records one dispatched cross-party call for the network
// activity monitor. Append-only; never mutated after append.
type AuditEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Operation string    `json:"operation"`

	// RedactedParams carries the call parameters with identity-bearing keys
	// (requester, sender) removed before storage.
	RedactedParams map[string]any `json:"params"`

	Status AuditStatus `json:"status"`
}
