package db

import (
	"fmt"
	"time"

	"aigateway/internal/model"

	"gorm.io/gorm"
)

// Window names accepted by ResetQuotaWindow.
const (
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
)

func (s *service) GetUserQuota(userID uint) (*model.UserQuota, error) {
	var quota model.UserQuota
	if err := s.db.Where("user_id = ?", userID).First(&quota).Error; err != nil {
		return nil, translateErr(err)
	}
	return &quota, nil
}

func (s *service) CreateUserQuota(quota *model.UserQuota) error {
	if err := s.db.Create(quota).Error; err != nil {
		return fmt.Errorf("failed to create user quota: %w", err)
	}
	return nil
}

// AddQuotaUsage increments all four rolling counters in one atomic UPDATE.
// The storage engine's single-row atomicity is the only locking here.
func (s *service) AddQuotaUsage(userID uint, tokens int64, cost float64) error {
	result := s.db.Model(&model.UserQuota{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"daily_tokens_used":   gorm.Expr("daily_tokens_used + ?", tokens),
			"monthly_tokens_used": gorm.Expr("monthly_tokens_used + ?", tokens),
			"daily_cost_used":     gorm.Expr("daily_cost_used + ?", cost),
			"monthly_cost_used":   gorm.Expr("monthly_cost_used + ?", cost),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add quota usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetQuotaWindow zeroes the counters of one window and advances its
// last-reset timestamp. Counters only ever reset through this path.
func (s *service) ResetQuotaWindow(userID uint, window string, now time.Time) error {
	var updates map[string]interface{}
	switch window {
	case WindowDaily:
		updates = map[string]interface{}{
			"daily_tokens_used": 0,
			"daily_cost_used":   0,
			"last_reset_daily":  now,
		}
	case WindowMonthly:
		updates = map[string]interface{}{
			"monthly_tokens_used": 0,
			"monthly_cost_used":   0,
			"last_reset_monthly":  now,
		}
	default:
		return fmt.Errorf("unknown quota window: %s", window)
	}
	result := s.db.Model(&model.UserQuota{}).Where("user_id = ?", userID).UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to reset %s quota window: %w", window, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
