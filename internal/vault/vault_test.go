package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"aigateway/internal/config"
	"aigateway/internal/crypto"
	"aigateway/internal/db"
	"aigateway/internal/logger"
	"aigateway/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures every sync request; fail makes each call error.
type recordingClient struct {
	mu       sync.Mutex
	payloads []syncPayload
	fail     bool
}

func (rc *recordingClient) Do(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	var payload syncPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	rc.mu.Lock()
	rc.payloads = append(rc.payloads, payload)
	failing := rc.fail
	rc.mu.Unlock()

	if failing {
		return nil, errors.New("backend down")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func (rc *recordingClient) lastPayload(t *testing.T) syncPayload {
	t.Helper()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	require.NotEmpty(t, rc.payloads)
	return rc.payloads[len(rc.payloads)-1]
}

func setupVault(t *testing.T, client HTTPClient) (*Vault, *SyncWorker, db.Service) {
	t.Helper()
	database, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	cipher, err := crypto.NewCipher(bytes.Repeat([]byte("k"), crypto.KeySize))
	require.NoError(t, err)

	log := logger.NewWithWriter(io.Discard, false)
	worker := NewSyncWorker(database, cipher, client, "http://backend/internal/keys/sync", log)
	t.Cleanup(worker.Close)

	return New(database, cipher, worker, log), worker, database
}

func TestCreateThenGetRoundTripsPlaintext(t *testing.T) {
	v, _, _ := setupVault(t, &recordingClient{})

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-test-123", []string{"gpt-4o"}))

	plaintext, err := v.GetByUserAndProvider(1, provider.OpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", plaintext)
}

func TestStoreLogsOnlyMaskedKeySuffix(t *testing.T) {
	database, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(bytes.Repeat([]byte("k"), crypto.KeySize))
	require.NoError(t, err)

	var logs bytes.Buffer
	log := logger.NewWithWriter(&logs, false)
	worker := NewSyncWorker(database, cipher, &recordingClient{}, "http://backend/internal/keys/sync", log)
	t.Cleanup(worker.Close)
	v := New(database, cipher, worker, log)

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-live-abcd9876", []string{"gpt-4o"}))
	worker.Flush()

	assert.Contains(t, logs.String(), "****9876")
	assert.NotContains(t, logs.String(), "sk-live-abcd9876")
}

func TestCreateOrUpdateRejectsEmptyKey(t *testing.T) {
	v, _, _ := setupVault(t, &recordingClient{})
	assert.ErrorIs(t, v.CreateOrUpdate(1, provider.OpenAI, "", nil), ErrEmptyKey)
}

func TestListingCarriesNoKeyMaterial(t *testing.T) {
	v, worker, _ := setupVault(t, &recordingClient{})

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-secret-value", []string{"gpt-4o"}))
	worker.Flush()

	listed, err := v.GetAllByUser(1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "openai", listed[0].Provider)
	assert.Equal(t, []string{"gpt-4o"}, listed[0].EnabledModels)
	assert.True(t, listed[0].Active)

	raw, err := json.Marshal(listed)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret-value")
}

func TestGetStampsLastUsed(t *testing.T) {
	v, _, database := setupVault(t, &recordingClient{})

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-test", nil))
	_, err := v.GetByUserAndProvider(1, provider.OpenAI)
	require.NoError(t, err)

	row, err := database.GetProviderKey(1, "openai")
	require.NoError(t, err)
	assert.NotNil(t, row.LastUsedAt)
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	v, _, database := setupVault(t, &recordingClient{})

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-test", nil))
	before, err := database.GetProviderKey(1, "openai")
	require.NoError(t, err)

	require.NoError(t, v.Delete(1, provider.OpenAI))
	_, err = v.GetByUserAndProvider(1, provider.OpenAI)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	require.NoError(t, v.Restore(1, provider.OpenAI))
	after, err := database.GetProviderKey(1, "openai")
	require.NoError(t, err)
	assert.True(t, after.Active)
	// The ciphertext survives the soft-delete/restore cycle untouched.
	assert.Equal(t, before.EncryptedKey, after.EncryptedKey)
}

func TestDeleteSyncExcludesProviderEvenWhenSyncFails(t *testing.T) {
	client := &recordingClient{fail: true}
	v, worker, _ := setupVault(t, client)

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-keep", nil))
	require.NoError(t, v.CreateOrUpdate(1, provider.Anthropic, "sk-drop", nil))
	worker.Flush()

	// The user-facing delete must not block on sync success.
	require.NoError(t, v.Delete(1, provider.Anthropic))
	worker.Flush()

	payload := client.lastPayload(t)
	assert.Equal(t, uint(1), payload.UserID)
	assert.Contains(t, payload.APIKeys, "openai")
	assert.NotContains(t, payload.APIKeys, "anthropic")
}

func TestSyncPayloadCarriesDecryptedKeys(t *testing.T) {
	client := &recordingClient{}
	v, worker, _ := setupVault(t, client)

	require.NoError(t, v.CreateOrUpdate(7, provider.Gemini, "gm-live-key", nil))
	worker.Flush()

	payload := client.lastPayload(t)
	assert.Equal(t, uint(7), payload.UserID)
	assert.Equal(t, "gm-live-key", payload.APIKeys["gemini"])
}

func TestHardDeleteRemovesRow(t *testing.T) {
	v, _, database := setupVault(t, &recordingClient{})

	require.NoError(t, v.CreateOrUpdate(1, provider.OpenAI, "sk-test", nil))
	require.NoError(t, v.HardDelete(1, provider.OpenAI))

	_, err := database.GetProviderKey(1, "openai")
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, v.HardDelete(1, provider.OpenAI), ErrNotFound)
}

func TestMutationsOnMissingKey(t *testing.T) {
	v, _, _ := setupVault(t, &recordingClient{})
	assert.ErrorIs(t, v.Delete(1, provider.Mistral), ErrNotFound)
	assert.ErrorIs(t, v.Restore(1, provider.Mistral), ErrNotFound)
	_, err := v.GetByUserAndProvider(1, provider.Mistral)
	assert.ErrorIs(t, err, ErrNotFound)
}
