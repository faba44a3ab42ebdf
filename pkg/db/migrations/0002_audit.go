package migrations

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is the frozen audit schema at version 2.
type AuditEntry struct {
	ID      int64             `gorm:"primaryKey;autoIncrement"`
	Actor   string            `gorm:"type:varchar(255);not null"`
	Action  string            `gorm:"type:varchar(64);not null;index"`
	Obj     string            `gorm:"type:varchar(255);index"`
	Details datatypes.JSONMap `gorm:"column:details"`
	At      time.Time         `gorm:"not null;index"`
}

func (AuditEntry) TableName() string { return "audit" }

func upAudit(ctx context.Context, dialector gorm.Dialector) error {
	gormDB, err := openTx(dialector)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(&AuditEntry{})
}

func downAudit(ctx context.Context, dialector gorm.Dialector) error {
	gormDB, err := openTx(dialector)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&AuditEntry{})
}
