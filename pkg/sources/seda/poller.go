// Package seda polls the SEDA HTTP API for custom oracle feeds.
//
// A single response can populate up to three state stores: the primary price
// (seda), the previous-session price (seda_last), and a session EMA price
// (seda_ema), each gated on the corresponding field name being configured.
package seda

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
	"tc.com/oracle-relayer/pkg/state"
	"tc.com/oracle-relayer/pkg/version"
)

// Poller polls each configured feed on its own schedule: poll_interval after a
// success, poll_failure_interval after a failure, with a bounded per-request
// timeout. No idle-timeout concept applies.
type Poller struct {
	url                 string
	apiKey              string
	feeds               map[string]config.SedaFeedConfig
	pollInterval        time.Duration
	pollFailureInterval time.Duration

	priceField       string
	timestampField   string
	lastPriceField   string
	sessionFlagField string
	sessionEMAField  string

	sedaState     *state.PriceSourceState
	sedaLastState *state.PriceSourceState
	sedaEMAState  *state.PriceSourceState

	client *http.Client
	logger *logging.Logger
}

// New creates a SEDA poller writing into the seda, seda_last, and seda_ema
// state stores. The API key is read from the configured path at construction.
func New(cfg *config.Config, states *state.Set, logger *logging.Logger) (*Poller, error) {
	apiKey := ""
	if cfg.Seda.APIKeyPath != "" {
		data, err := os.ReadFile(cfg.Seda.APIKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SEDA api key: %w", err)
		}
		apiKey = strings.TrimSpace(string(data))
	}

	return &Poller{
		url:                 cfg.Seda.URL,
		apiKey:              apiKey,
		feeds:               cfg.Seda.Feeds,
		pollInterval:        cfg.Seda.PollInterval.ToDuration(),
		pollFailureInterval: cfg.Seda.PollFailureInterval.ToDuration(),
		priceField:          cfg.Seda.PriceField,
		timestampField:      cfg.Seda.TimestampField,
		lastPriceField:      cfg.Seda.LastPriceField,
		sessionFlagField:    cfg.Seda.SessionFlagField,
		sessionEMAField:     cfg.Seda.SessionEMAField,
		sedaState:           states.Seda,
		sedaLastState:       states.SedaLast,
		sedaEMAState:        states.SedaEMA,
		client:              &http.Client{Timeout: cfg.Seda.PollTimeout.ToDuration()},
		logger:              logger.With("source", "seda"),
	}, nil
}

// Run starts one polling loop per feed and blocks until the context is
// canceled.
func (p *Poller) Run(ctx context.Context) {
	if len(p.feeds) == 0 {
		p.logger.Info("no SEDA feeds configured, poller disabled")
		return
	}

	done := make(chan struct{}, len(p.feeds))
	for name, feed := range p.feeds {
		name, feed := name, feed
		go func() {
			p.pollLoop(ctx, name, feed)
			done <- struct{}{}
		}()
	}
	for range p.feeds {
		<-done
	}
}

func (p *Poller) pollLoop(ctx context.Context, feedName string, feed config.SedaFeedConfig) {
	for {
		wait := p.pollInterval
		if err := p.pollOnce(ctx, feedName, feed); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("SEDA poll failed", "feed", feedName, "error", err)
			metrics.RecordSedaPollFailure(feedName)
			wait = p.pollFailureInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// pollOnce performs one GET and parses the nested result on success.
func (p *Poller) pollOnce(ctx context.Context, feedName string, feed config.SedaFeedConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("execProgramId", feed.ExecProgramID)
	q.Set("execInputs", feed.ExecInputs)
	q.Set("encoding", "utf8")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return p.parseResponse(feedName, body)
}

// parseResponse extracts the JSON-encoded data.result payload and writes every
// configured price field into its state store. Parse errors are reported so
// the failure interval applies, but they never fault the poller itself.
func (p *Poller) parseResponse(feedName string, body []byte) error {
	result := gjson.GetBytes(body, "data.result")
	if !result.Exists() {
		return fmt.Errorf("response missing data.result")
	}
	// data.result is itself a JSON-encoded string.
	inner := result.String()

	price := gjson.Get(inner, p.priceField)
	if !price.Exists() {
		return fmt.Errorf("result missing field %q", p.priceField)
	}

	tsRaw := gjson.Get(inner, p.timestampField)
	if !tsRaw.Exists() {
		return fmt.Errorf("result missing field %q", p.timestampField)
	}
	ts, err := time.Parse(time.RFC3339, tsRaw.String())
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", tsRaw.String(), err)
	}
	timestamp := float64(ts.UnixNano()) / 1e9

	sessionFlag := false
	if p.sessionFlagField != "" {
		sessionFlag = gjson.Get(inner, p.sessionFlagField).Bool()
	}

	p.sedaState.Put(feedName, state.PriceUpdate{
		Price:       price.String(),
		Timestamp:   timestamp,
		SessionFlag: sessionFlag,
	})
	metrics.RecordSourceUpdate("seda")
	p.logger.Debug("SEDA update",
		"feed", feedName, "price", price.String(), "session_flag", sessionFlag)

	if p.lastPriceField != "" {
		if last := gjson.Get(inner, p.lastPriceField); last.Exists() {
			p.sedaLastState.Put(feedName, state.PriceUpdate{
				Price:       last.String(),
				Timestamp:   timestamp,
				SessionFlag: sessionFlag,
			})
		}
	}

	if p.sessionEMAField != "" {
		if ema := gjson.Get(inner, p.sessionEMAField); ema.Exists() {
			p.sedaEMAState.Put(feedName, state.PriceUpdate{
				Price:       ema.String(),
				Timestamp:   timestamp,
				SessionFlag: sessionFlag,
			})
		}
	}

	return nil
}
