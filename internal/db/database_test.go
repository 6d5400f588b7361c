package db

import (
	"testing"
	"time"

	"aigateway/internal/config"
	"aigateway/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a fresh in-memory sqlite database behind the real
// Service implementation.
func setupTestDB(t *testing.T) Service {
	t.Helper()
	service, err := NewService(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  "file::memory:",
	})
	require.NoError(t, err)
	return service
}

func TestNewService(t *testing.T) {
	service, err := NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	assert.NoError(t, err)
	assert.NotNil(t, service)

	_, err = NewService(config.DatabaseConfig{Type: "unsupported"})
	assert.Error(t, err)
}

func createTestUser(t *testing.T, service Service, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         "user",
		Tier:         "free",
		Active:       true,
	}
	require.NoError(t, service.CreateUser(user))
	return user
}

func TestUserLookups(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	byID, err := service.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := service.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := service.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = service.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserDuplicate(t *testing.T) {
	service := setupTestDB(t)
	createTestUser(t, service, "alice")

	dup := &model.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	assert.Error(t, service.CreateUser(dup))
}

func TestUpsertProviderKeyReplacesInPlace(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	first := &model.ProviderAPIKey{UserID: user.ID, Provider: "openai", EncryptedKey: "enc-1", Active: true}
	require.NoError(t, service.UpsertProviderKey(first))

	second := &model.ProviderAPIKey{UserID: user.ID, Provider: "openai", EncryptedKey: "enc-2", Active: true}
	require.NoError(t, service.UpsertProviderKey(second))

	keys, err := service.ListProviderKeysByUser(user.ID, true)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "enc-2", keys[0].EncryptedKey)
}

func TestSoftDeleteRestoreKeepsCiphertext(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	key := &model.ProviderAPIKey{UserID: user.ID, Provider: "openai", EncryptedKey: "ciphertext", Active: true}
	require.NoError(t, service.UpsertProviderKey(key))

	require.NoError(t, service.SoftDeleteProviderKey(user.ID, "openai"))
	row, err := service.GetProviderKey(user.ID, "openai")
	require.NoError(t, err)
	assert.False(t, row.Active)
	assert.Equal(t, "ciphertext", row.EncryptedKey)

	// Inactive keys disappear from the active listing but not the full one.
	active, err := service.ListProviderKeysByUser(user.ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := service.ListProviderKeysByUser(user.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, service.RestoreProviderKey(user.ID, "openai"))
	row, err = service.GetProviderKey(user.ID, "openai")
	require.NoError(t, err)
	assert.True(t, row.Active)
	assert.Equal(t, "ciphertext", row.EncryptedKey)
}

func TestHardDeleteProviderKey(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	key := &model.ProviderAPIKey{UserID: user.ID, Provider: "openai", EncryptedKey: "enc", Active: true}
	require.NoError(t, service.UpsertProviderKey(key))

	require.NoError(t, service.HardDeleteProviderKey(user.ID, "openai"))
	_, err := service.GetProviderKey(user.ID, "openai")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, service.HardDeleteProviderKey(user.ID, "openai"), ErrNotFound)
}

func TestTouchProviderKeyLastUsed(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	key := &model.ProviderAPIKey{UserID: user.ID, Provider: "openai", EncryptedKey: "enc", Active: true}
	require.NoError(t, service.UpsertProviderKey(key))

	stamp := time.Now().Truncate(time.Second)
	require.NoError(t, service.TouchProviderKeyLastUsed(user.ID, "openai", stamp))

	row, err := service.GetProviderKey(user.ID, "openai")
	require.NoError(t, err)
	require.NotNil(t, row.LastUsedAt)
	assert.WithinDuration(t, stamp, *row.LastUsedAt, time.Second)
}

func TestQuotaCountersAndReset(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	now := time.Now()
	quota := &model.UserQuota{
		UserID:            user.ID,
		DailyTokenLimit:   1000,
		MonthlyTokenLimit: 10000,
		LastResetDaily:    now,
		LastResetMonthly:  now,
	}
	require.NoError(t, service.CreateUserQuota(quota))

	require.NoError(t, service.AddQuotaUsage(user.ID, 100, 0.5))
	require.NoError(t, service.AddQuotaUsage(user.ID, 50, 0.25))

	got, err := service.GetUserQuota(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.DailyTokensUsed)
	assert.Equal(t, int64(150), got.MonthlyTokensUsed)
	assert.InDelta(t, 0.75, got.DailyCostUsed, 1e-9)

	resetAt := now.Add(25 * time.Hour)
	require.NoError(t, service.ResetQuotaWindow(user.ID, WindowDaily, resetAt))

	got, err = service.GetUserQuota(user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.DailyTokensUsed)
	assert.Zero(t, got.DailyCostUsed)
	// The monthly window is untouched.
	assert.Equal(t, int64(150), got.MonthlyTokensUsed)
	assert.True(t, got.LastResetDaily.After(now))
}

func TestAddQuotaUsageUnknownUser(t *testing.T) {
	service := setupTestDB(t)
	assert.ErrorIs(t, service.AddQuotaUsage(999, 10, 0), ErrNotFound)
}

func TestSummarizeUsage(t *testing.T) {
	service := setupTestDB(t)
	user := createTestUser(t, service, "alice")

	for _, m := range []*model.UsageMetric{
		{UserID: user.ID, RequestType: "completion", Model: "gpt-4o", TokensIn: 100, TokensOut: 50, Cost: 0.01, Success: true},
		{UserID: user.ID, RequestType: "completion", Model: "gpt-4o", TokensIn: 200, TokensOut: 100, Cost: 0.02, Success: true},
		{UserID: user.ID, RequestType: "completion", Model: "gemini-2.0-flash", TokensIn: 10, TokensOut: 5, Cost: 0.001, Success: false},
	} {
		require.NoError(t, service.AppendUsageMetric(m))
	}

	summary, err := service.SummarizeUsage(user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(2), summary.SuccessfulRequests)
	assert.Equal(t, int64(310), summary.TotalTokensIn)
	assert.Equal(t, int64(155), summary.TotalTokensOut)
	assert.InDelta(t, 0.031, summary.TotalCost, 1e-9)
	require.Len(t, summary.ByModel, 2)

	// A user with no rows gets a zero summary, not an error.
	empty, err := service.SummarizeUsage(12345, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRequests)
	assert.Empty(t, empty.ByModel)
}

func TestCostConfigFallbackSeed(t *testing.T) {
	service := setupTestDB(t)
	require.NoError(t, service.SeedDefaultCostConfigs())
	// Seeding twice must not fail or duplicate.
	require.NoError(t, service.SeedDefaultCostConfigs())

	def, err := service.GetCostConfig(model.DefaultModelName)
	require.NoError(t, err)
	assert.True(t, def.Active)
	assert.Greater(t, def.InputPricePer1K, 0.0)

	_, err = service.GetCostConfig("no-such-model")
	assert.ErrorIs(t, err, ErrNotFound)
}
