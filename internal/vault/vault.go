// Package vault holds per-user provider credentials, encrypted at rest, and
// keeps the inference backend's key cache in sync with them.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aigateway/internal/crypto"
	"aigateway/internal/db"
	"aigateway/internal/logger"
	"aigateway/internal/model"
	"aigateway/internal/provider"

	"gorm.io/datatypes"
)

var (
	ErrNotFound   = errors.New("provider key not found")
	ErrEmptyKey   = errors.New("api key must not be empty")
	ErrKeyRevoked = errors.New("provider key is not active")
)

// ListedKey is the bulk-listing view of a credential. It never carries key
// material, plaintext or encrypted.
type ListedKey struct {
	Provider      string     `json:"provider"`
	EnabledModels []string   `json:"models_enabled"`
	Active        bool       `json:"active"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

// Vault is the credential store. All dependencies are injected.
type Vault struct {
	db     db.Service
	cipher *crypto.Cipher
	sync   *SyncWorker
	logger *slog.Logger
}

// New creates a Vault. The sync worker may be nil in tests that do not care
// about downstream sync.
func New(database db.Service, cipher *crypto.Cipher, sync *SyncWorker, logger *slog.Logger) *Vault {
	return &Vault{
		db:     database,
		cipher: cipher,
		sync:   sync,
		logger: logger.With("component", "vault"),
	}
}

// CreateOrUpdate encrypts and upserts the credential for (user, provider),
// marks it active, and triggers an asynchronous sync. Sync failure never
// fails the write; the vault is authoritative and the backend cache is an
// eventually-consistent projection.
func (v *Vault) CreateOrUpdate(userID uint, prov provider.Provider, plaintextKey string, enabledModels []string) error {
	if plaintextKey == "" {
		return ErrEmptyKey
	}
	encrypted, err := v.cipher.Encrypt(plaintextKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt provider key: %w", err)
	}
	modelsJSON, err := json.Marshal(enabledModels)
	if err != nil {
		return fmt.Errorf("failed to serialize enabled models: %w", err)
	}

	key := &model.ProviderAPIKey{
		UserID:        userID,
		Provider:      prov.String(),
		EncryptedKey:  encrypted,
		EnabledModels: datatypes.JSON(modelsJSON),
		Active:        true,
	}
	if err := v.db.UpsertProviderKey(key); err != nil {
		return err
	}
	v.logger.Info("Provider key stored", "user_id", userID, "provider", prov.String(), "key", logger.SafeKeySuffix(plaintextKey))
	v.requestSync(userID)
	return nil
}

// GetAllByUser lists a user's credentials, including soft-deleted ones, with
// no key material.
func (v *Vault) GetAllByUser(userID uint) ([]ListedKey, error) {
	keys, err := v.db.ListProviderKeysByUser(userID, true)
	if err != nil {
		return nil, err
	}
	listed := make([]ListedKey, 0, len(keys))
	for _, k := range keys {
		var models []string
		if len(k.EnabledModels) > 0 {
			if err := json.Unmarshal(k.EnabledModels, &models); err != nil {
				v.logger.Warn("Corrupt enabled_models column", "user_id", userID, "provider", k.Provider)
			}
		}
		listed = append(listed, ListedKey{
			Provider:      k.Provider,
			EnabledModels: models,
			Active:        k.Active,
			LastUsedAt:    k.LastUsedAt,
		})
	}
	return listed, nil
}

// GetByUserAndProvider decrypts and returns the key. This is the only path
// that yields plaintext, intended for server-to-server use; every read stamps
// lastUsedAt.
func (v *Vault) GetByUserAndProvider(userID uint, prov provider.Provider) (string, error) {
	key, err := v.db.GetProviderKey(userID, prov.String())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !key.Active {
		return "", ErrKeyRevoked
	}
	plaintext, err := v.cipher.Decrypt(key.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt provider key: %w", err)
	}
	if err := v.db.TouchProviderKeyLastUsed(userID, prov.String(), time.Now()); err != nil {
		v.logger.Warn("Failed to stamp provider key last use", "user_id", userID, "provider", prov.String(), "error", err)
	}
	return plaintext, nil
}

// Delete soft-deletes the credential and resyncs. The ciphertext stays in
// place so Restore can bring the key back.
func (v *Vault) Delete(userID uint, prov provider.Provider) error {
	if err := v.db.SoftDeleteProviderKey(userID, prov.String()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	v.requestSync(userID)
	return nil
}

// HardDelete permanently removes the credential. Irreversible, administrative
// path only.
func (v *Vault) HardDelete(userID uint, prov provider.Provider) error {
	if err := v.db.HardDeleteProviderKey(userID, prov.String()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	v.requestSync(userID)
	return nil
}

// Restore reactivates a soft-deleted credential and resyncs.
func (v *Vault) Restore(userID uint, prov provider.Provider) error {
	if err := v.db.RestoreProviderKey(userID, prov.String()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	v.requestSync(userID)
	return nil
}

func (v *Vault) requestSync(userID uint) {
	if v.sync == nil {
		return
	}
	v.sync.Enqueue(userID)
}
