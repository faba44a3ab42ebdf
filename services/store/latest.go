package store

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// latestRunOrder picks the newest report; identical timestamps fall back to
// arrival order and then id so the result is stable.
const latestRunOrder = "timestamp DESC, received_at DESC, id DESC"

const overviewQuery = `
SELECT
	h.id AS host_id,
	h.hostname AS hostname,
	h.last_seen AS last_seen,
	r.id AS run_id,
	r.timestamp AS run_timestamp,
	r.distribution_id AS distribution_id,
	r.distribution_version AS distribution_version,
	r.distribution_name AS distribution_name,
	r.package_manager AS package_manager,
	r.total_updates AS total_updates,
	r.security_updates AS security_updates,
	r.received_at AS received_at
FROM hosts h
LEFT JOIN update_runs r ON r.id = (
	SELECT r2.id FROM update_runs r2
	WHERE r2.host_id = h.id
	ORDER BY r2.timestamp DESC, r2.received_at DESC, r2.id DESC
	LIMIT 1
)
ORDER BY h.hostname`

type overviewRow struct {
	HostID              string     `db:"host_id"`
	Hostname            string     `db:"hostname"`
	LastSeen            *time.Time `db:"last_seen"`
	RunID               *string    `db:"run_id"`
	RunTimestamp        *time.Time `db:"run_timestamp"`
	DistributionID      *string    `db:"distribution_id"`
	DistributionVersion *string    `db:"distribution_version"`
	DistributionName    *string    `db:"distribution_name"`
	PackageManager      *string    `db:"package_manager"`
	TotalUpdates        *int       `db:"total_updates"`
	SecurityUpdates     *int       `db:"security_updates"`
	ReceivedAt          *time.Time `db:"received_at"`
}

func (r overviewRow) toSummary() (HostSummary, error) {
	hostID, err := uuid.Parse(r.HostID)
	if err != nil {
		return HostSummary{}, err
	}
	summary := HostSummary{
		ID:       hostID,
		Hostname: r.Hostname,
		LastSeen: utcPtr(r.LastSeen),
	}
	if r.RunID == nil {
		return summary, nil
	}

	runID, err := uuid.Parse(*r.RunID)
	if err != nil {
		return HostSummary{}, err
	}
	summary.LatestRun = &UpdateRun{
		ID:                  runID,
		HostID:              hostID,
		Timestamp:           derefTime(r.RunTimestamp),
		DistributionID:      derefString(r.DistributionID),
		DistributionVersion: derefString(r.DistributionVersion),
		DistributionName:    derefString(r.DistributionName),
		PackageManager:      derefString(r.PackageManager),
		TotalUpdates:        derefInt(r.TotalUpdates),
		SecurityUpdates:     derefInt(r.SecurityUpdates),
		ReceivedAt:          derefTime(r.ReceivedAt),
	}
	return summary, nil
}

// Overview lists every host with its latest run, without packages, in one query.
func (s *Store) Overview(ctx context.Context) (summaries []HostSummary, err error) {
	ctx, span := startSpan(ctx, "store.Overview")
	defer func() { endSpan(span, err) }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []overviewRow
	if err := sqlscan.Select(ctx, s.sql, &rows, overviewQuery); err != nil {
		return nil, err
	}

	summaries = make([]HostSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := row.toSummary()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	span.SetAttributes(attribute.Int("hosts", len(summaries)))
	return summaries, nil
}

// LatestRun returns the host's most recent run with its packages, or nil
// when the host has not reported yet.
func (s *Store) LatestRun(ctx context.Context, hostID uuid.UUID) (run *UpdateRun, err error) {
	ctx, span := startSpan(ctx, "store.LatestRun", attribute.String("host.id", hostID.String()))
	defer func() { endSpan(span, err) }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return latestRun(s.orm.WithContext(ctx), hostID)
}

// HostDetail returns the host together with its latest run and packages.
func (s *Store) HostDetail(ctx context.Context, hostID uuid.UUID) (detail HostDetail, err error) {
	ctx, span := startSpan(ctx, "store.HostDetail", attribute.String("host.id", hostID.String()))
	defer func() { endSpan(span, err) }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := s.orm.WithContext(ctx)

	var host hostModel
	if err := orm.First(&host, "id = ?", hostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return HostDetail{}, ErrHostNotFound
		}
		return HostDetail{}, err
	}

	run, err := latestRun(orm, hostID)
	if err != nil {
		return HostDetail{}, err
	}
	return HostDetail{Host: host.toAPI(), LatestRun: run}, nil
}

func latestRun(orm *gorm.DB, hostID uuid.UUID) (*UpdateRun, error) {
	var runModel updateRunModel
	err := orm.Where("host_id = ?", hostID).Order(latestRunOrder).Take(&runModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pkgModels []packageUpdateModel
	if err := orm.Where("update_run_id = ?", runModel.ID).
		Order("is_security_update DESC, name ASC, id ASC").
		Find(&pkgModels).Error; err != nil {
		return nil, err
	}

	run := runModel.toAPI()
	run.Packages = make([]PackageUpdate, 0, len(pkgModels))
	for _, m := range pkgModels {
		run.Packages = append(run.Packages, m.toAPI())
	}
	return &run, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
