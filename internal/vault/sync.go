package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"aigateway/internal/crypto"
	"aigateway/internal/db"
)

// HTTPClient defines the interface for making HTTP requests. This allows for
// mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// syncPayload is the wire format of the backend's key-sync endpoint.
type syncPayload struct {
	UserID  uint              `json:"user_id"`
	APIKeys map[string]string `json:"api_keys"`
}

// SyncWorker pushes a user's active, decrypted credentials to the backend's
// key cache. Jobs run on a single background goroutine fed by a buffered
// channel; a failed push is only retried by the next mutation.
type SyncWorker struct {
	db       db.Service
	cipher   *crypto.Cipher
	client   HTTPClient
	endpoint string
	logger   *slog.Logger

	queue    chan uint
	stopChan chan struct{}
	wg       sync.WaitGroup
	pending  sync.WaitGroup
}

// NewSyncWorker creates and starts the worker. endpoint is the absolute URL
// of the backend's key-sync route.
func NewSyncWorker(database db.Service, cipher *crypto.Cipher, client HTTPClient, endpoint string, logger *slog.Logger) *SyncWorker {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	w := &SyncWorker{
		db:       database,
		cipher:   cipher,
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "keysync"),
		queue:    make(chan uint, 100),
		stopChan: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue schedules a sync for the user. It never blocks the caller: if the
// queue is full the job is dropped, because the next mutation enqueues a
// fresh full-state sync anyway.
func (w *SyncWorker) Enqueue(userID uint) {
	w.pending.Add(1)
	select {
	case w.queue <- userID:
	default:
		w.pending.Done()
		w.logger.Warn("Sync queue full, dropping job", "user_id", userID)
	}
}

func (w *SyncWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case userID := <-w.queue:
			w.syncUser(userID)
			w.pending.Done()
		case <-w.stopChan:
			return
		}
	}
}

// syncUser gathers every active key for the user, decrypts them, and POSTs
// the full map to the backend. All failures are logged and swallowed; the
// vault stays authoritative regardless.
func (w *SyncWorker) syncUser(userID uint) {
	keys, err := w.db.ListProviderKeysByUser(userID, false)
	if err != nil {
		w.logger.Error("Failed to load keys for sync", "user_id", userID, "error", err)
		return
	}

	payload := syncPayload{UserID: userID, APIKeys: make(map[string]string, len(keys))}
	for _, k := range keys {
		plaintext, err := w.cipher.Decrypt(k.EncryptedKey)
		if err != nil {
			w.logger.Error("Failed to decrypt key for sync", "user_id", userID, "provider", k.Provider, "error", err)
			continue
		}
		payload.APIKeys[k.Provider] = plaintext
	}

	if err := w.post(payload); err != nil {
		w.logger.Warn("Key sync failed, will retry on next mutation", "user_id", userID, "error", err)
		return
	}
	w.logger.Debug("Key sync complete", "user_id", userID, "key_count", len(payload.APIKeys))
}

func (w *SyncWorker) post(payload syncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sync payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Flush blocks until every job enqueued so far has been processed. Tests use
// this instead of racing the background goroutine.
func (w *SyncWorker) Flush() {
	w.pending.Wait()
}

// Close stops the worker goroutine. Queued but unprocessed jobs are dropped.
func (w *SyncWorker) Close() {
	close(w.stopChan)
	w.wg.Wait()
}
