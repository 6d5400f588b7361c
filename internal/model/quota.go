package model

import (
	"time"

	"gorm.io/gorm"
)

// UserQuota carries the per-user rolling ceilings and counters. Counters are
// monotonic between resets; a reset zeroes them and advances the matching
// last-reset timestamp, never the other way around.
type UserQuota struct {
	gorm.Model
	UserID            uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	DailyTokenLimit   int64     `gorm:"default:0;not null" json:"daily_token_limit"`
	MonthlyTokenLimit int64     `gorm:"default:0;not null" json:"monthly_token_limit"`
	DailyCostLimit    float64   `gorm:"default:0;not null" json:"daily_cost_limit"`
	MonthlyCostLimit  float64   `gorm:"default:0;not null" json:"monthly_cost_limit"`
	DailyTokensUsed   int64     `gorm:"default:0;not null" json:"daily_tokens_used"`
	MonthlyTokensUsed int64     `gorm:"default:0;not null" json:"monthly_tokens_used"`
	DailyCostUsed     float64   `gorm:"default:0;not null" json:"daily_cost_used"`
	MonthlyCostUsed   float64   `gorm:"default:0;not null" json:"monthly_cost_used"`
	LastResetDaily    time.Time `gorm:"not null" json:"last_reset_daily"`
	LastResetMonthly  time.Time `gorm:"not null" json:"last_reset_monthly"`
}
