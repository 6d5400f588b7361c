// Package quota gates billable operations against per-user rolling ceilings
// and maintains the append-only usage audit trail.
package quota

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aigateway/internal/db"
	"aigateway/internal/model"
)

// Rolling window lengths. Windows drift with usage rather than aligning to
// calendar boundaries: a reset anchors to the moment it is applied.
const (
	DailyWindow   = 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// TierDefaults are the quota ceilings provisioned lazily on first access.
type TierDefaults struct {
	DailyTokens   int64
	MonthlyTokens int64
	DailyCost     float64
	MonthlyCost   float64
}

var tierDefaults = map[string]TierDefaults{
	"free": {DailyTokens: 100_000, MonthlyTokens: 2_000_000, DailyCost: 1.0, MonthlyCost: 20.0},
	"pro":  {DailyTokens: 1_000_000, MonthlyTokens: 20_000_000, DailyCost: 20.0, MonthlyCost: 400.0},
}

// DefaultsForTier returns the ceilings for a tier, falling back to free.
func DefaultsForTier(tier string) TierDefaults {
	if d, ok := tierDefaults[tier]; ok {
		return d
	}
	return tierDefaults["free"]
}

// Event is one tracked usage occurrence.
type Event struct {
	UserID      uint
	RequestID   string
	RequestType string
	ResourceID  string
	Model       string
	TokensIn    int64
	TokensOut   int64
	DurationMS  int64
	Endpoint    string
	Success     bool
	Error       string
}

// Summary is the externally visible aggregate for a period.
type Summary struct {
	Period string `json:"period"`
	db.UsageSummary
}

// Ledger owns quota admission and usage metering. The clock is injected so
// reset boundaries can be tested without wall-clock tricks.
type Ledger struct {
	db     db.Service
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Ledger with the real clock.
func New(database db.Service, logger *slog.Logger) *Ledger {
	return &Ledger{
		db:     database,
		logger: logger.With("component", "quota"),
		now:    time.Now,
	}
}

// resetDue reports whether a rolling window has elapsed since the last reset.
// Pure; the mutation lives in maybeReset.
func resetDue(now, lastReset time.Time, window time.Duration) bool {
	return now.Sub(lastReset) >= window
}

// maybeReset applies any due window resets and returns the refreshed row.
func (l *Ledger) maybeReset(q *model.UserQuota) (*model.UserQuota, error) {
	now := l.now()
	changed := false
	if resetDue(now, q.LastResetDaily, DailyWindow) {
		if err := l.db.ResetQuotaWindow(q.UserID, db.WindowDaily, now); err != nil {
			return nil, fmt.Errorf("failed to reset daily window: %w", err)
		}
		changed = true
	}
	if resetDue(now, q.LastResetMonthly, MonthlyWindow) {
		if err := l.db.ResetQuotaWindow(q.UserID, db.WindowMonthly, now); err != nil {
			return nil, fmt.Errorf("failed to reset monthly window: %w", err)
		}
		changed = true
	}
	if !changed {
		return q, nil
	}
	return l.db.GetUserQuota(q.UserID)
}

// GetUserQuota fetches the user's quota row, provisioning tier defaults if
// absent. This is the only implicit-creation path in the system. Due window
// resets are applied before the row is returned. An empty tier is resolved
// from the user record so admission-path provisioning honors the real tier.
func (l *Ledger) GetUserQuota(userID uint, tier string) (*model.UserQuota, error) {
	q, err := l.db.GetUserQuota(userID)
	if errors.Is(err, db.ErrNotFound) {
		if tier == "" {
			if user, uerr := l.db.GetUserByID(userID); uerr == nil {
				tier = user.Tier
			}
		}
		q, err = l.provision(userID, tier)
		// A concurrent request may have provisioned first; re-read.
		if err != nil {
			q, err = l.db.GetUserQuota(userID)
		}
	}
	if err != nil {
		return nil, err
	}
	return l.maybeReset(q)
}

func (l *Ledger) provision(userID uint, tier string) (*model.UserQuota, error) {
	d := DefaultsForTier(tier)
	now := l.now()
	q := &model.UserQuota{
		UserID:            userID,
		DailyTokenLimit:   d.DailyTokens,
		MonthlyTokenLimit: d.MonthlyTokens,
		DailyCostLimit:    d.DailyCost,
		MonthlyCostLimit:  d.MonthlyCost,
		LastResetDaily:    now,
		LastResetMonthly:  now,
	}
	if err := l.db.CreateUserQuota(q); err != nil {
		return nil, err
	}
	l.logger.Info("Provisioned default quota", "user_id", userID, "tier", tier)
	return q, nil
}

// CheckQuota reports whether the user may spend tokensNeeded more tokens.
// It never returns an error: any internal failure denies admission and is
// logged. A request that exactly reaches a ceiling is allowed; one token
// over is denied. The estimated-cost check splits tokensNeeded evenly
// between input and output pricing.
func (l *Ledger) CheckQuota(userID uint, tokensNeeded int64, modelName string) bool {
	q, err := l.GetUserQuota(userID, "")
	if err != nil {
		l.logger.Error("Quota check failed, denying admission", "user_id", userID, "error", err)
		return false
	}

	if q.DailyTokensUsed+tokensNeeded > q.DailyTokenLimit {
		return false
	}
	if q.MonthlyTokensUsed+tokensNeeded > q.MonthlyTokenLimit {
		return false
	}

	half := tokensNeeded / 2
	estimated := l.CalculateCost(half, tokensNeeded-half, modelName)
	if q.DailyCostUsed+estimated > q.DailyCostLimit {
		return false
	}
	if q.MonthlyCostUsed+estimated > q.MonthlyCostLimit {
		return false
	}
	return true
}

// CalculateCost prices a call from the CostConfig table, falling back to the
// "default" row for unknown models. Cost resolution never fails; it may be
// approximate.
func (l *Ledger) CalculateCost(tokensIn, tokensOut int64, modelName string) float64 {
	cfg, err := l.db.GetCostConfig(modelName)
	if errors.Is(err, db.ErrNotFound) {
		cfg, err = l.db.GetCostConfig(model.DefaultModelName)
	}
	if err != nil {
		l.logger.Error("Cost lookup failed, assuming zero cost", "model", modelName, "error", err)
		return 0
	}
	return float64(tokensIn)/1000*cfg.InputPricePer1K + float64(tokensOut)/1000*cfg.OutputPricePer1K
}

// TrackUsage appends the audit row unconditionally, then bumps the rolling
// counters only for successful events. Failed calls are visible in the audit
// trail but consume no quota.
func (l *Ledger) TrackUsage(event Event) error {
	cost := l.CalculateCost(event.TokensIn, event.TokensOut, event.Model)
	metric := &model.UsageMetric{
		UserID:       event.UserID,
		RequestID:    event.RequestID,
		RequestType:  event.RequestType,
		ResourceID:   event.ResourceID,
		Model:        event.Model,
		TokensIn:     event.TokensIn,
		TokensOut:    event.TokensOut,
		Cost:         cost,
		DurationMS:   event.DurationMS,
		Endpoint:     event.Endpoint,
		Success:      event.Success,
		ErrorMessage: event.Error,
	}
	if err := l.db.AppendUsageMetric(metric); err != nil {
		return err
	}
	if !event.Success {
		return nil
	}

	// Ensure the row exists and due resets are applied before counting.
	if _, err := l.GetUserQuota(event.UserID, ""); err != nil {
		return err
	}
	if err := l.db.AddQuotaUsage(event.UserID, event.TokensIn+event.TokensOut, cost); err != nil {
		return fmt.Errorf("failed to update quota counters: %w", err)
	}
	return nil
}

// Summarize aggregates usage for a period: "daily" (last 24h), "monthly"
// (last 30 days), or "all_time". Unknown users get an empty summary.
func (l *Ledger) Summarize(userID uint, period string) (*Summary, error) {
	var since time.Time
	switch period {
	case "daily":
		since = l.now().Add(-DailyWindow)
	case "monthly":
		since = l.now().Add(-MonthlyWindow)
	case "all_time", "":
		period = "all_time"
	default:
		return nil, fmt.Errorf("unknown period: %s", period)
	}
	agg, err := l.db.SummarizeUsage(userID, since)
	if err != nil {
		return nil, err
	}
	return &Summary{Period: period, UsageSummary: *agg}, nil
}

// Dashboard composes the quota row with daily and monthly summaries.
type Dashboard struct {
	Quota   *model.UserQuota `json:"quota"`
	Daily   *Summary         `json:"daily"`
	Monthly *Summary         `json:"monthly"`
}

// GetDashboard builds the composite usage view for a user.
func (l *Ledger) GetDashboard(userID uint, tier string) (*Dashboard, error) {
	q, err := l.GetUserQuota(userID, tier)
	if err != nil {
		return nil, err
	}
	daily, err := l.Summarize(userID, "daily")
	if err != nil {
		return nil, err
	}
	monthly, err := l.Summarize(userID, "monthly")
	if err != nil {
		return nil, err
	}
	return &Dashboard{Quota: q, Daily: daily, Monthly: monthly}, nil
}
