package store

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Submit persists one run with its packages and bumps the host's last-seen
// time in a single transaction. Nothing is written if any step fails.
func (s *Store) Submit(ctx context.Context, hostID uuid.UUID, run UpdateRun, pkgs []PackageUpdate) (saved UpdateRun, err error) {
	ctx, span := startSpan(ctx, "store.Submit",
		attribute.String("host.id", hostID.String()),
		attribute.Int("packages", len(pkgs)),
	)
	defer func() { endSpan(span, err) }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := s.now()
	run.ID = uuid.New()
	run.HostID = hostID
	run.ReceivedAt = now
	run.Timestamp = run.Timestamp.UTC()

	runModel := runModelFromAPI(run)
	pkgModels := make([]packageUpdateModel, 0, len(pkgs))
	for _, p := range pkgs {
		p.ID = uuid.New()
		p.UpdateRunID = run.ID
		pkgModels = append(pkgModels, packageModelFromAPI(p))
	}

	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&hostModel{}).Where("id = ?", hostID).Update("last_seen", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrHostNotFound
		}

		if err := tx.Create(&runModel).Error; err != nil {
			return err
		}
		if len(pkgModels) > 0 {
			if err := tx.CreateInBatches(&pkgModels, packageBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return UpdateRun{}, err
	}

	saved = runModel.toAPI()
	saved.Packages = make([]PackageUpdate, 0, len(pkgModels))
	for _, m := range pkgModels {
		saved.Packages = append(saved.Packages, m.toAPI())
	}
	return saved, nil
}
