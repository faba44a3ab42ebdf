package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var validate = validator.New()

type hostInput struct {
	Hostname string `validate:"required,max=255"`
}

// GenerateAPIKey returns 32 random bytes encoded as 64 hex characters.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateHost registers a new host with a freshly generated API key.
func (s *Store) CreateHost(ctx context.Context, hostname string) (host Host, err error) {
	hostname = strings.TrimSpace(hostname)
	ctx, span := startSpan(ctx, "store.CreateHost", attribute.String("host.name", hostname))
	defer func() { endSpan(span, err) }()

	if err := validate.Struct(hostInput{Hostname: hostname}); err != nil {
		return Host{}, fmt.Errorf("%w: %s", ErrInvalidHostname, describeValidation(err))
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return Host{}, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	model := hostModel{
		ID:        uuid.New(),
		Hostname:  hostname,
		APIKey:    key,
		CreatedAt: s.now(),
	}

	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&hostModel{}).Where("hostname = ?", hostname).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrHostnameTaken
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return s.recordAudit(ctx, tx, AuditHostCreated, model)
	})
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Host{}, ErrHostnameTaken
	case err != nil:
		return Host{}, err
	}

	return model.toAPI(), nil
}

// RotateAPIKey replaces the host's API key. Identity and history are preserved.
func (s *Store) RotateAPIKey(ctx context.Context, id uuid.UUID) (host Host, err error) {
	ctx, span := startSpan(ctx, "store.RotateAPIKey", attribute.String("host.id", id.String()))
	defer func() { endSpan(span, err) }()

	key, err := GenerateAPIKey()
	if err != nil {
		return Host{}, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model hostModel
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&hostModel{}).Where("id = ?", id).Update("api_key", key)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrHostNotFound
		}
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		return s.recordAudit(ctx, tx, AuditHostKeyRotated, model)
	})
	if err != nil {
		return Host{}, err
	}
	return model.toAPI(), nil
}

// DeleteHost removes the host together with all of its runs and packages.
func (s *Store) DeleteHost(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "store.DeleteHost", attribute.String("host.id", id.String()))
	defer func() { endSpan(span, err) }()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	// The schema cascades too; deleting children explicitly keeps the
	// guarantee on connections where foreign keys are not enforced.
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model hostModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHostNotFound
			}
			return err
		}

		runIDs := tx.Model(&updateRunModel{}).Select("id").Where("host_id = ?", id)
		if err := tx.Where("update_run_id IN (?)", runIDs).Delete(&packageUpdateModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id = ?", id).Delete(&updateRunModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&hostModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrHostNotFound
		}
		return s.recordAudit(ctx, tx, AuditHostDeleted, model)
	})
}

// GetHost fetches a host by id.
func (s *Store) GetHost(ctx context.Context, id uuid.UUID) (Host, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model hostModel
	if err := s.orm.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Host{}, ErrHostNotFound
		}
		return Host{}, err
	}
	return model.toAPI(), nil
}

// HostByAPIKey resolves the host that owns key.
func (s *Store) HostByAPIKey(ctx context.Context, key string) (Host, error) {
	if key == "" {
		return Host{}, ErrHostNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model hostModel
	if err := s.orm.WithContext(ctx).First(&model, "api_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Host{}, ErrHostNotFound
		}
		return Host{}, err
	}
	return model.toAPI(), nil
}

// ListHosts returns every host ordered by hostname.
func (s *Store) ListHosts(ctx context.Context) ([]Host, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var models []hostModel
	if err := s.orm.WithContext(ctx).Order("hostname ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	hosts := make([]Host, 0, len(models))
	for _, m := range models {
		hosts = append(hosts, m.toAPI())
	}
	return hosts, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("failed %s", fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
