package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProviderAPIKey holds one upstream provider credential for a user, encrypted
// at rest. Exactly one row exists per (user, provider) pair; soft deletion is
// modeled by the Active flag so a key can be restored with its ciphertext
// intact.
type ProviderAPIKey struct {
	gorm.Model
	UserID        uint           `gorm:"uniqueIndex:idx_user_provider;not null" json:"user_id"`
	Provider      string         `gorm:"type:varchar(50);uniqueIndex:idx_user_provider;not null" json:"provider"`
	EncryptedKey  string         `gorm:"type:text;not null" json:"-"`
	EnabledModels datatypes.JSON `gorm:"type:json" json:"enabled_models"`
	Active        bool           `gorm:"default:true;not null" json:"active"`
	LastUsedAt    *time.Time     `json:"last_used_at,omitempty"`
}
