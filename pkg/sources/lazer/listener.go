// Package lazer subscribes to Lazer WebSocket routers for low-latency price
// feeds. Feed IDs are numeric; connections are bearer-token authenticated.
package lazer

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
	"tc.com/oracle-relayer/pkg/sources"
	"tc.com/oracle-relayer/pkg/sources/stream"
	"tc.com/oracle-relayer/pkg/state"
)

// Listener owns one WebSocket session per configured router URL. All sessions
// subscribe to the same fixed-rate channel and reconnect independently with a
// fixed 1s backoff.
type Listener struct {
	urls         []string
	apiKey       string
	feedIDs      []int64
	staleTimeout time.Duration

	lazerState *state.PriceSourceState
	logger     *logging.Logger
}

// New creates a Lazer listener writing into the lazer state store.
func New(cfg *config.Config, states *state.Set, logger *logging.Logger) *Listener {
	return &Listener{
		urls:         cfg.Lazer.URLs,
		apiKey:       cfg.LazerAPIKey(),
		feedIDs:      cfg.Lazer.FeedIDs,
		staleTimeout: sources.DefaultStaleTimeout,
		lazerState:   states.Lazer,
		logger:       logger.With("source", "lazer"),
	}
}

// Run starts one session loop per router URL and blocks until the context is
// canceled.
func (l *Listener) Run(ctx context.Context) {
	if len(l.urls) == 0 || len(l.feedIDs) == 0 {
		l.logger.Info("no Lazer URLs or feed ids configured, listener disabled")
		return
	}

	done := make(chan struct{}, len(l.urls))
	for _, url := range l.urls {
		url := url
		go func() {
			sources.RunLoop(ctx, l.logger, "lazer", url,
				sources.NewFixedBackoff(time.Second),
				func(ctx context.Context) error {
					return l.session(ctx, url)
				})
			done <- struct{}{}
		}()
	}
	for range l.urls {
		<-done
	}
}

func (l *Listener) session(ctx context.Context, url string) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+l.apiKey)

	conn, err := stream.Dial(ctx, url, headers)
	if err != nil {
		return err
	}
	defer conn.Close()

	subscribe := map[string]interface{}{
		"type":               "subscribe",
		"subscriptionId":     1,
		"priceFeedIds":       l.feedIDs,
		"properties":         []string{"price"},
		"formats":            []string{},
		"deliveryFormat":     "json",
		"channel":            "fixed_rate@200ms",
		"parsed":             true,
		"jsonBinaryEncoding": "base64",
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	l.logger.Info("sent Lazer subscribe", "url", url, "feeds", len(l.feedIDs))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := conn.ReadMessage(l.staleTimeout)
		if err != nil {
			return err
		}
		l.handleMessage(msg, float64(time.Now().UnixNano())/1e9)
	}
}

type streamUpdate struct {
	Type   string `json:"type"`
	Parsed struct {
		PriceFeeds []feedEntry `json:"priceFeeds"`
	} `json:"parsed"`
}

type feedEntry struct {
	PriceFeedID *int64  `json:"priceFeedId"`
	Price       *string `json:"price"`
}

// handleMessage parses a streamUpdated message; entries missing the feed id or
// price are skipped individually. Other message types are ignored.
func (l *Listener) handleMessage(msg []byte, now float64) {
	var update streamUpdate
	if err := json.Unmarshal(msg, &update); err != nil {
		l.logger.Warn("failed to decode Lazer message", "error", err)
		return
	}
	if update.Type != "streamUpdated" {
		l.logger.Debug("ignoring Lazer message", "type", update.Type)
		return
	}

	for _, entry := range update.Parsed.PriceFeeds {
		if entry.PriceFeedID == nil || entry.Price == nil {
			l.logger.Debug("skipping Lazer feed entry with missing fields")
			continue
		}
		key := strconv.FormatInt(*entry.PriceFeedID, 10)
		l.lazerState.Put(key, state.PriceUpdate{Price: *entry.Price, Timestamp: now})
	}
	if len(update.Parsed.PriceFeeds) > 0 {
		metrics.RecordSourceUpdate("lazer")
	}
}
