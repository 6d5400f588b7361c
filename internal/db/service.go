// Package db wraps all storage access behind a Service interface so handlers
// and services can be tested against fakes or an in-memory sqlite database.
package db

import (
	"errors"
	"fmt"
	"time"

	"aigateway/internal/config"
	"aigateway/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// UsageSummary aggregates a user's metered usage over a period.
type UsageSummary struct {
	TotalRequests      int64        `json:"total_requests"`
	SuccessfulRequests int64        `json:"successful_requests"`
	TotalTokensIn      int64        `json:"total_tokens_in"`
	TotalTokensOut     int64        `json:"total_tokens_out"`
	TotalCost          float64      `json:"total_cost"`
	ByModel            []ModelUsage `json:"by_model"`
}

// ModelUsage is the per-model slice of a summary.
type ModelUsage struct {
	Model    string  `json:"model"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Service defines the storage operations the gateway needs.
type Service interface {
	// Users
	CreateUser(user *model.User) error
	GetUserByID(id uint) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	UpdateUserLastLogin(id uint, at time.Time) error

	// Provider credentials
	UpsertProviderKey(key *model.ProviderAPIKey) error
	ListProviderKeysByUser(userID uint, includeInactive bool) ([]model.ProviderAPIKey, error)
	GetProviderKey(userID uint, provider string) (*model.ProviderAPIKey, error)
	SoftDeleteProviderKey(userID uint, provider string) error
	HardDeleteProviderKey(userID uint, provider string) error
	RestoreProviderKey(userID uint, provider string) error
	TouchProviderKeyLastUsed(userID uint, provider string, at time.Time) error

	// Quota ledger
	GetUserQuota(userID uint) (*model.UserQuota, error)
	CreateUserQuota(quota *model.UserQuota) error
	AddQuotaUsage(userID uint, tokens int64, cost float64) error
	ResetQuotaWindow(userID uint, window string, now time.Time) error

	// Usage metering
	AppendUsageMetric(metric *model.UsageMetric) error
	SummarizeUsage(userID uint, since time.Time) (*UsageSummary, error)

	// Cost configuration
	GetCostConfig(modelName string) (*model.CostConfig, error)
	SeedDefaultCostConfigs() error

	GetDB() *gorm.DB
}

type service struct {
	db *gorm.DB
}

// NewService opens the configured database, runs migrations, and returns the
// storage service.
func NewService(cfg config.DatabaseConfig) (Service, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.ProviderAPIKey{},
		&model.UserQuota{},
		&model.UsageMetric{},
		&model.CostConfig{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &service{db: db}, nil
}

// GetDB exposes the underlying gorm handle, primarily for tests.
func (s *service) GetDB() *gorm.DB {
	return s.db
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
