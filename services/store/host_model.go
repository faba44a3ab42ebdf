package store

import (
	"time"

	"github.com/google/uuid"
)

type hostModel struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey"`
	Hostname  string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	APIKey    string     `gorm:"column:api_key;type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	LastSeen  *time.Time `gorm:"column:last_seen"`
}

func (hostModel) TableName() string { return "hosts" }

func (m hostModel) toAPI() Host {
	return Host{
		ID:        m.ID,
		Hostname:  m.Hostname,
		APIKey:    m.APIKey,
		CreatedAt: m.CreatedAt,
		LastSeen:  m.LastSeen,
	}
}
