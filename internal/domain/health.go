package domain

import "time"

// HealthStatus is the daemon-internal availability state of an MCP server.
// The API layer maintains its own representation and converts at the boundary.
type HealthStatus string

const (
	HealthStatusOK          HealthStatus = "ok"
	HealthStatusTimeout     HealthStatus = "timeout"
	HealthStatusUnreachable HealthStatus = "unreachable"
	HealthStatusUnknown     HealthStatus = "unknown"
)

// Healthy reports whether the status indicates a responsive server.
func (s HealthStatus) Healthy() bool {
	return s == HealthStatusOK
}

// ServerHealth is one server's health record as maintained by the daemon's
// ping loop. Latency and timestamps are nil until the first check completes.
type ServerHealth struct {
	Name           string
	Status         HealthStatus
	Latency        *time.Duration
	LastChecked    *time.Time
	LastSuccessful *time.Time
}
