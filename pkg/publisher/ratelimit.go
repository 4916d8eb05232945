package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
)

const infoPath = "/info"

// RateLimitPoller periodically queries the venue info API for the pusher
// account's request-weight usage. Runs on its own interval, independent of
// the publish cycle.
type RateLimitPoller struct {
	urls     []string
	user     string
	interval time.Duration
	client   *http.Client
	logger   *logging.Logger
}

type rateLimitRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type rateLimitResponse struct {
	NRequestsUsed float64 `json:"nRequestsUsed"`
	NRequestsCap  float64 `json:"nRequestsCap"`
}

// NewRateLimitPoller polls usage for the given account, which is the multisig
// account in multisig mode and the signing address otherwise.
func NewRateLimitPoller(cfg *config.Config, user common.Address, logger *logging.Logger) *RateLimitPoller {
	return &RateLimitPoller{
		urls:     cfg.Hyperliquid.PushURLs,
		user:     strings.ToLower(user.Hex()),
		interval: cfg.Hyperliquid.UserLimitInterval.ToDuration(),
		client:   &http.Client{Timeout: cfg.Hyperliquid.PublishTimeout.ToDuration()},
		logger:   logger.With("component", "rate_limit_poller"),
	}
}

// Run polls on every interval tick until the context is canceled.
func (r *RateLimitPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.pollOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("user rate limit poll failed", "error", err)
			}
		}
	}
}

func (r *RateLimitPoller) pollOnce(ctx context.Context) error {
	payload, err := json.Marshal(rateLimitRequest{Type: "userRateLimit", User: r.user})
	if err != nil {
		return err
	}

	var lastErr error = ErrPushFailed
	for _, url := range r.urls {
		usage, err := r.queryOne(ctx, url, payload)
		if err != nil {
			lastErr = err
			continue
		}
		metrics.RecordUserRateLimit(r.user, usage.NRequestsUsed, usage.NRequestsCap)
		r.logger.Debug("user rate limit",
			"user", r.user, "used", usage.NRequestsUsed, "cap", usage.NRequestsCap)
		return nil
	}
	return lastErr
}

func (r *RateLimitPoller) queryOne(ctx context.Context, url string, payload []byte) (rateLimitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+infoPath, bytes.NewReader(payload))
	if err != nil {
		return rateLimitResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return rateLimitResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rateLimitResponse{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var usage rateLimitResponse
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return rateLimitResponse{}, err
	}
	return usage, nil
}
