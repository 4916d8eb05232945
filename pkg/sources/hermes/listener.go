// Package hermes subscribes to Hermes WebSocket endpoints for Pythnet price
// feeds. Feed IDs are 64-character hex strings; typically used as a fallback
// behind Lazer in the waterfall.
package hermes

import (
	"context"
	"encoding/json"
	"time"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
	"tc.com/oracle-relayer/pkg/sources"
	"tc.com/oracle-relayer/pkg/sources/stream"
	"tc.com/oracle-relayer/pkg/state"
)

// Listener owns one WebSocket session per configured URL, reconnecting with a
// fixed 1s backoff.
type Listener struct {
	urls         []string
	feedIDs      []string
	staleTimeout time.Duration

	hermesState *state.PriceSourceState
	logger      *logging.Logger
}

// New creates a Hermes listener writing into the hermes state store.
func New(cfg *config.Config, states *state.Set, logger *logging.Logger) *Listener {
	return &Listener{
		urls:         cfg.Hermes.URLs,
		feedIDs:      cfg.Hermes.FeedIDs,
		staleTimeout: sources.DefaultStaleTimeout,
		hermesState:  states.Hermes,
		logger:       logger.With("source", "hermes"),
	}
}

// Run starts one session loop per URL and blocks until the context is canceled.
func (l *Listener) Run(ctx context.Context) {
	if len(l.urls) == 0 || len(l.feedIDs) == 0 {
		l.logger.Info("no Hermes URLs or feed ids configured, listener disabled")
		return
	}

	done := make(chan struct{}, len(l.urls))
	for _, url := range l.urls {
		url := url
		go func() {
			sources.RunLoop(ctx, l.logger, "hermes", url,
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
	conn, err := stream.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subscribe := map[string]interface{}{
		"type":                     "subscribe",
		"ids":                      l.feedIDs,
		"verbose":                  false,
		"binary":                   true,
		"allow_out_of_order":       false,
		"ignore_invalid_price_ids": false,
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	l.logger.Info("sent Hermes subscribe", "url", url, "feeds", len(l.feedIDs))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := conn.ReadMessage(l.staleTimeout)
		if err != nil {
			return err
		}
		l.handleMessage(msg)
	}
}

type priceUpdate struct {
	Type      string `json:"type"`
	PriceFeed struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Expo        int    `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"price_feed"`
}

// handleMessage parses a price_update message. Other message types (responses,
// errors) are logged and skipped.
func (l *Listener) handleMessage(msg []byte) {
	var update priceUpdate
	if err := json.Unmarshal(msg, &update); err != nil {
		l.logger.Warn("failed to decode Hermes message", "error", err)
		return
	}
	if update.Type != "price_update" {
		l.logger.Debug("ignoring Hermes message", "type", update.Type)
		return
	}
	if update.PriceFeed.ID == "" || update.PriceFeed.Price.Price == "" {
		l.logger.Warn("Hermes price_update missing id or price")
		return
	}

	l.hermesState.Put(update.PriceFeed.ID, state.PriceUpdate{
		Price:     update.PriceFeed.Price.Price,
		Timestamp: float64(update.PriceFeed.Price.PublishTime),
	})
	metrics.RecordSourceUpdate("hermes")
}
