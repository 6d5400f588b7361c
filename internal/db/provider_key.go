package db

import (
	"fmt"
	"time"

	"aigateway/internal/model"

	"gorm.io/gorm/clause"
)

// UpsertProviderKey inserts or replaces the single credential row for the
// key's (user, provider) pair. An existing row keeps its primary key; the
// ciphertext, enabled models, and active flag are overwritten.
func (s *service) UpsertProviderKey(key *model.ProviderAPIKey) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "enabled_models", "active", "updated_at"}),
	}).Create(key).Error
	if err != nil {
		return fmt.Errorf("failed to upsert provider key: %w", err)
	}
	return nil
}

func (s *service) ListProviderKeysByUser(userID uint, includeInactive bool) ([]model.ProviderAPIKey, error) {
	var keys []model.ProviderAPIKey
	query := s.db.Where("user_id = ?", userID)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("provider asc").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list provider keys: %w", err)
	}
	return keys, nil
}

// GetProviderKey returns the row regardless of its active flag; callers that
// only want live credentials must check Active themselves.
func (s *service) GetProviderKey(userID uint, provider string) (*model.ProviderAPIKey, error) {
	var key model.ProviderAPIKey
	err := s.db.Where("user_id = ? AND provider = ?", userID, provider).First(&key).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &key, nil
}

func (s *service) SoftDeleteProviderKey(userID uint, provider string) error {
	return s.setProviderKeyActive(userID, provider, false)
}

func (s *service) RestoreProviderKey(userID uint, provider string) error {
	return s.setProviderKeyActive(userID, provider, true)
}

func (s *service) setProviderKeyActive(userID uint, provider string, active bool) error {
	result := s.db.Model(&model.ProviderAPIKey{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update provider key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDeleteProviderKey permanently removes the row. Irreversible,
// administrative use only.
func (s *service) HardDeleteProviderKey(userID uint, provider string) error {
	result := s.db.Unscoped().
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&model.ProviderAPIKey{})
	if result.Error != nil {
		return fmt.Errorf("failed to hard-delete provider key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *service) TouchProviderKeyLastUsed(userID uint, provider string, at time.Time) error {
	result := s.db.Model(&model.ProviderAPIKey{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Update("last_used_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to stamp provider key last use: %w", result.Error)
	}
	return nil
}
