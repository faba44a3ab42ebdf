package store

import (
	"time"

	"github.com/google/uuid"
)

// UpdateRun is one snapshot report from a host.
type UpdateRun struct {
	ID                  uuid.UUID       `json:"id"`
	HostID              uuid.UUID       `json:"host_id"`
	Timestamp           time.Time       `json:"timestamp"`
	DistributionID      string          `json:"distribution_id"`
	DistributionVersion string          `json:"distribution_version"`
	DistributionName    string          `json:"distribution_name"`
	PackageManager      string          `json:"package_manager"`
	TotalUpdates        int             `json:"total_updates"`
	SecurityUpdates     int             `json:"security_updates"`
	ReceivedAt          time.Time       `json:"received_at"`
	Packages            []PackageUpdate `json:"packages,omitempty"`
}

// PackageUpdate is one available package update within a run.
type PackageUpdate struct {
	ID               uuid.UUID      `json:"id"`
	UpdateRunID      uuid.UUID      `json:"update_run_id"`
	Name             string         `json:"name"`
	Version          string         `json:"version"`
	CurrentVersion   string         `json:"current_version"`
	Architecture     string         `json:"architecture"`
	IsSecurityUpdate bool           `json:"is_security_update"`
	Size             *string        `json:"size,omitempty"`
	Website          *string        `json:"website,omitempty"`
	Description      *string        `json:"description,omitempty"`
	AdditionalInfo   map[string]any `json:"additional_info,omitempty"`
}
