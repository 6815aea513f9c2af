package mapping

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"listingpilot/backend/internal/models"
)

// GormStore keeps mappings in the field_mappings table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, field, selector string) error {
	if err := validate(field, selector); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var existing models.FieldMapping
	err := db.Where("field = ?", field).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Create(&models.FieldMapping{Field: field, Selector: selector}).Error; err != nil {
			return fmt.Errorf("create mapping %s: %w", field, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read mapping %s: %w", field, err)
	}

	if err := db.Model(&existing).Update("selector", selector).Error; err != nil {
		return fmt.Errorf("update mapping %s: %w", field, err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, field string) (string, bool, error) {
	if !ValidField(field) {
		return "", false, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	var m models.FieldMapping
	err := s.db.WithContext(ctx).Where("field = ?", field).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read mapping %s: %w", field, err)
	}
	return m.Selector, true, nil
}

func (s *GormStore) All(ctx context.Context) (map[string]string, error) {
	var list []models.FieldMapping
	if err := s.db.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	out := make(map[string]string, len(list))
	for _, m := range list {
		out[m.Field] = m.Selector
	}
	return out, nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.FieldMapping{}).Error
	if err != nil {
		return fmt.Errorf("clear mappings: %w", err)
	}
	return nil
}
