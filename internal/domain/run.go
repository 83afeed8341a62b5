package domain

import "time"

// RunStatus enumerates pipeline run milestones.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run origins.
const (
	OriginSchedule        = "schedule"
	OriginAPI             = "api"
	OriginTelegramRefresh = "telegram_refresh"
	OriginCLI             = "cli"
)

// RunRecord is the audit trail of one pipeline execution.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Origin    string    `json:"origin,omitempty"`
	Stats     Stats     `json:"stats"`
	Errors    []string  `json:"errors"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
