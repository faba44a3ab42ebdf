package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Host, UpdateRun and PackageUpdate are frozen copies of the schema at
// version 1. Later migrations must not edit them.
type Host struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey"`
	Hostname  string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	APIKey    string     `gorm:"column:api_key;type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	LastSeen  *time.Time `gorm:"column:last_seen"`
}

type UpdateRun struct {
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
	Host                Host      `gorm:"foreignKey:HostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type PackageUpdate struct {
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
	UpdateRun        UpdateRun         `gorm:"foreignKey:UpdateRunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// All returns the ordered migrations for the given driver.
func All(driver string) []*goose.Migration {
	dialector := dialectorFor(driver)
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error { return upInit(ctx, dialector(tx)) }},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error { return downInit(ctx, dialector(tx)) }},
		),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error { return upAudit(ctx, dialector(tx)) }},
			&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error { return downAudit(ctx, dialector(tx)) }},
		),
	}
}

func dialectorFor(driver string) func(*sql.Tx) gorm.Dialector {
	if driver == "postgres" {
		return func(tx *sql.Tx) gorm.Dialector {
			return postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true})
		}
	}
	return func(tx *sql.Tx) gorm.Dialector {
		return &sqlite.Dialector{Conn: tx}
	}
}

func openTx(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, dialector gorm.Dialector) error {
	gormDB, err := openTx(dialector)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Host{},
		&UpdateRun{},
		&PackageUpdate{},
	)
}

func downInit(ctx context.Context, dialector gorm.Dialector) error {
	gormDB, err := openTx(dialector)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&PackageUpdate{},
		&UpdateRun{},
		&Host{},
	)
}
