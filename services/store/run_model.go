package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type updateRunModel struct {
	ID                  uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	HostID              uuid.UUID `gorm:"type:varchar(36);not null;index"`
	Timestamp           time.Time `gorm:"not null;index"`
	DistributionID      string    `gorm:"type:varchar(255);not null"`
	DistributionVersion string    `gorm:"type:varchar(255);not null"`
	DistributionName    string    `gorm:"type:varchar(255);not null"`
	PackageManager      string    `gorm:"type:varchar(255);not null"`
	TotalUpdates        int       `gorm:"not null;default:0"`
	SecurityUpdates     int       `gorm:"not null;default:0"`
	ReceivedAt          time.Time `gorm:"not null"`
}

func (updateRunModel) TableName() string { return "update_runs" }

func (m updateRunModel) toAPI() UpdateRun {
	return UpdateRun{
		ID:                  m.ID,
		HostID:              m.HostID,
		Timestamp:           m.Timestamp.UTC(),
		DistributionID:      m.DistributionID,
		DistributionVersion: m.DistributionVersion,
		DistributionName:    m.DistributionName,
		PackageManager:      m.PackageManager,
		TotalUpdates:        m.TotalUpdates,
		SecurityUpdates:     m.SecurityUpdates,
		ReceivedAt:          m.ReceivedAt.UTC(),
	}
}

func runModelFromAPI(r UpdateRun) updateRunModel {
	return updateRunModel{
		ID:                  r.ID,
		HostID:              r.HostID,
		Timestamp:           r.Timestamp.UTC(),
		DistributionID:      r.DistributionID,
		DistributionVersion: r.DistributionVersion,
		DistributionName:    r.DistributionName,
		PackageManager:      r.PackageManager,
		TotalUpdates:        r.TotalUpdates,
		SecurityUpdates:     r.SecurityUpdates,
		ReceivedAt:          r.ReceivedAt.UTC(),
	}
}

type packageUpdateModel struct {
	ID               uuid.UUID         `gorm:"type:varchar(36);primaryKey"`
	UpdateRunID      uuid.UUID         `gorm:"type:varchar(36);not null;index"`
	Name             string            `gorm:"type:varchar(255);not null"`
	Version          string            `gorm:"type:varchar(255);not null"`
	CurrentVersion   string            `gorm:"type:varchar(255)"`
	Architecture     string            `gorm:"type:varchar(255)"`
	IsSecurityUpdate bool              `gorm:"not null;default:false"`
	Size             *string           `gorm:"type:varchar(255)"`
	Website          *string           `gorm:"type:varchar(255)"`
	Description      *string           `gorm:"type:text"`
	AdditionalInfo   datatypes.JSONMap `gorm:"column:additional_info"`
}

func (packageUpdateModel) TableName() string { return "package_updates" }

func (m packageUpdateModel) toAPI() PackageUpdate {
	return PackageUpdate{
		ID:               m.ID,
		UpdateRunID:      m.UpdateRunID,
		Name:             m.Name,
		Version:          m.Version,
		CurrentVersion:   m.CurrentVersion,
		Architecture:     m.Architecture,
		IsSecurityUpdate: m.IsSecurityUpdate,
		Size:             m.Size,
		Website:          m.Website,
		Description:      m.Description,
		AdditionalInfo:   mapFromJSONMap(m.AdditionalInfo),
	}
}

func packageModelFromAPI(p PackageUpdate) packageUpdateModel {
	return packageUpdateModel{
		ID:               p.ID,
		UpdateRunID:      p.UpdateRunID,
		Name:             p.Name,
		Version:          p.Version,
		CurrentVersion:   p.CurrentVersion,
		Architecture:     p.Architecture,
		IsSecurityUpdate: p.IsSecurityUpdate,
		Size:             p.Size,
		Website:          p.Website,
		Description:      p.Description,
		AdditionalInfo:   toJSONMap(p.AdditionalInfo),
	}
}

// mapFromJSONMap and toJSONMap keep nil as nil: an absent additional-info
// column must stay distinguishable from an empty one.
func mapFromJSONMap(src datatypes.JSONMap) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func toJSONMap(src map[string]any) datatypes.JSONMap {
	if len(src) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
