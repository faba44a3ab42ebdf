package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pmgmt/pkg/bus"
	"pmgmt/pkg/render"
	"pmgmt/services/store"
)

const (
	updatesReceivedTopic = bus.SubjectUpdatesReceived
	hostCreatedTopic     = bus.SubjectHostCreated
	hostKeyRotatedTopic  = bus.SubjectHostKeyRotated
	hostDeletedTopic     = bus.SubjectHostDeleted

	defaultMaxBodyBytes   = 10 << 20
	defaultRequestTimeout = 60 * time.Second
	sideEffectTimeout     = 30 * time.Second
)

// Publisher emits events after committed changes.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// ReportArchiver keeps a copy of raw report bodies.
type ReportArchiver interface {
	Archive(ctx context.Context, hostID, runID uuid.UUID, raw []byte) (string, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store holds external dependencies required by the API layer. Archiver and
// Bus are optional.
type Store struct {
	Hosts    *store.Store
	DB       Pinger
	Archiver ReportArchiver
	Bus      Publisher
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	// Username and Password guard the dashboard and the JSON API. When either
	// is empty those routes answer 500.
	Username string
	Password string

	MaxBodyBytes   int64
	RateLimit      int
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// API wires dependencies, template renderer, and configuration for HTTP handlers.
type API struct {
	store    *Store
	renderer *render.Engine
	config   Config
	metrics  *metrics
	logger   zerolog.Logger

	pending sync.WaitGroup
}

// New initialises the API layer with sane defaults applied to the provided configuration.
func New(st *Store, renderer *render.Engine, cfg Config) (*API, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if st.Hosts == nil {
		return nil, errors.New("host store is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &API{
		store:    st,
		renderer: renderer,
		config:   cfg,
		metrics:  newMetrics(),
		logger:   cfg.Logger.With().Str("component", "api").Logger(),
	}, nil
}

func (a *API) dashboardAuthConfigured() bool {
	return a.config.Username != "" && a.config.Password != ""
}
