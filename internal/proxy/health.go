package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient defines the interface for making HTTP requests. This allows for
// mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Prober periodically checks backend reachability. The gateway reports
// "degraded" while the probe fails but keeps serving local routes.
type Prober struct {
	client   HTTPClient
	url      string
	period   time.Duration
	logger   *slog.Logger
	healthy  atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewProber creates and starts a prober against the backend health endpoint.
func NewProber(client HTTPClient, url string, period time.Duration, logger *slog.Logger) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	p := &Prober{
		client:   client,
		url:      url,
		period:   period,
		logger:   logger.With("component", "healthprobe"),
		stopChan: make(chan struct{}),
	}
	p.probe()
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Prober) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.probe()
		case <-p.stopChan:
			return
		}
	}
}

func (p *Prober) probe() {
	req, err := http.NewRequest(http.MethodGet, p.url, nil)
	if err != nil {
		p.setHealthy(false)
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.setHealthy(false)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	p.setHealthy(resp.StatusCode >= 200 && resp.StatusCode < 300)
}

func (p *Prober) setHealthy(healthy bool) {
	previous := p.healthy.Swap(healthy)
	if previous != healthy {
		if healthy {
			p.logger.Info("Backend is reachable again")
		} else {
			p.logger.Warn("Backend is unreachable, reporting degraded status")
		}
	}
}

// Healthy reports the last observed backend state.
func (p *Prober) Healthy() bool {
	return p.healthy.Load()
}

// Close stops the probe loop.
func (p *Prober) Close() {
	close(p.stopChan)
	p.wg.Wait()
}
