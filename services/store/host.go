package store

import (
	"time"

	"github.com/google/uuid"
)

// Host is a managed machine that reports available package updates.
type Host struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Hostname  string     `json:"hostname" db:"hostname"`
	APIKey    string     `json:"api_key,omitempty" db:"api_key"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastSeen  *time.Time `json:"last_seen" db:"last_seen"`
}

// HostSummary is one row of the dashboard overview.
type HostSummary struct {
	ID        uuid.UUID  `json:"id"`
	Hostname  string     `json:"hostname"`
	LastSeen  *time.Time `json:"last_seen"`
	LatestRun *UpdateRun `json:"latest_run"`
}

// HostDetail is a host together with its most recent run and that run's packages.
type HostDetail struct {
	Host      Host       `json:"host"`
	LatestRun *UpdateRun `json:"latest_run"`
}
