package db

import (
	"fmt"
	"time"

	"aigateway/internal/model"

	"gorm.io/gorm"
)

// AppendUsageMetric inserts one audit row. Rows are never updated afterwards.
func (s *service) AppendUsageMetric(metric *model.UsageMetric) error {
	if err := s.db.Create(metric).Error; err != nil {
		return fmt.Errorf("failed to append usage metric: %w", err)
	}
	return nil
}

// SummarizeUsage aggregates a user's usage since the given time. A zero since
// means all time. Users with no history get a zero-valued summary, not an
// error.
func (s *service) SummarizeUsage(userID uint, since time.Time) (*UsageSummary, error) {
	scope := func() *gorm.DB {
		q := s.db.Model(&model.UsageMetric{}).Where("user_id = ?", userID)
		if !since.IsZero() {
			q = q.Where("created_at >= ?", since)
		}
		return q
	}

	summary := &UsageSummary{}
	row := scope().Select(
		"COUNT(*) AS total_requests, " +
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful_requests, " +
			"COALESCE(SUM(tokens_in), 0) AS total_tokens_in, " +
			"COALESCE(SUM(tokens_out), 0) AS total_tokens_out, " +
			"COALESCE(SUM(cost), 0) AS total_cost",
	).Row()
	if err := row.Scan(
		&summary.TotalRequests,
		&summary.SuccessfulRequests,
		&summary.TotalTokensIn,
		&summary.TotalTokensOut,
		&summary.TotalCost,
	); err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	var byModel []ModelUsage
	err := scope().Select(
		"model, " +
			"COUNT(*) AS requests, " +
			"COALESCE(SUM(tokens_in + tokens_out), 0) AS tokens, " +
			"COALESCE(SUM(cost), 0) AS cost",
	).Group("model").Order("model asc").Scan(&byModel).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage by model: %w", err)
	}
	summary.ByModel = byModel
	return summary, nil
}
