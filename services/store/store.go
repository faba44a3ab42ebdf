package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"pmgmt/pkg/db"
)

var (
	// ErrHostNotFound is returned when an operation references an unknown host.
	ErrHostNotFound = errors.New("host not found")
	// ErrHostnameTaken is returned when creating a host whose hostname already exists.
	ErrHostnameTaken = errors.New("hostname already exists")
	// ErrInvalidHostname is returned when a hostname fails validation.
	ErrInvalidHostname = errors.New("invalid hostname")
)

const packageBatchSize = 200

var tracer = otel.Tracer("pmgmt/store")

// Store owns every read and write of hosts, update runs and package updates.
type Store struct {
	orm *gorm.DB
	sql *sql.DB
	now func() time.Time
}

// New constructs a Store over an opened database handle.
func New(database *db.DB) (*Store, error) {
	if database == nil || database.ORM == nil || database.SQL == nil {
		return nil, errors.New("database is required")
	}
	return &Store{
		orm: database.ORM,
		sql: database.SQL,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.DefaultTimeout)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
