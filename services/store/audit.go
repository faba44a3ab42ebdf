package store

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AuditHostCreated    = "host_created"
	AuditHostKeyRotated = "host_key_rotated"
	AuditHostDeleted    = "host_deleted"

	defaultActor      = "system"
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type actorCtxKey struct{}

// WithActor attributes host changes made with ctx to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func actorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorCtxKey{}).(string); ok && actor != "" {
		return actor
	}
	return defaultActor
}

// AuditEntry records one host management change.
type AuditEntry struct {
	ID      int64          `json:"id"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Obj     string         `json:"obj"`
	Details map[string]any `json:"details,omitempty"`
	At      time.Time      `json:"at"`
}

type auditModel struct {
	ID      int64             `gorm:"primaryKey;autoIncrement"`
	Actor   string            `gorm:"type:varchar(255);not null"`
	Action  string            `gorm:"type:varchar(64);not null"`
	Obj     string            `gorm:"type:varchar(255)"`
	Details datatypes.JSONMap `gorm:"column:details"`
	At      time.Time         `gorm:"not null"`
}

func (auditModel) TableName() string { return "audit" }

func (m auditModel) toAPI() AuditEntry {
	return AuditEntry{
		ID:      m.ID,
		Actor:   m.Actor,
		Action:  m.Action,
		Obj:     m.Obj,
		Details: mapFromJSONMap(m.Details),
		At:      m.At.UTC(),
	}
}

// recordAudit writes through tx, the transaction that made the change.
func (s *Store) recordAudit(ctx context.Context, tx *gorm.DB, action string, host hostModel) error {
	return tx.Create(&auditModel{
		Actor:   actorFromContext(ctx),
		Action:  action,
		Obj:     host.ID.String(),
		Details: datatypes.JSONMap{"hostname": host.Hostname},
		At:      s.now(),
	}).Error
}

// AuditLog returns the newest entries first. A non-positive limit selects
// the default page size.
func (s *Store) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var models []auditModel
	if err := s.orm.WithContext(ctx).Order("at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, m.toAPI())
	}
	return entries, nil
}
