// Package hyperliquid subscribes to the venue WebSocket for oracle, mark, and
// mid reference prices.
//
// Two subscriptions per connection: activeAssetCtx for each configured symbol
// (feeds hl_oracle and hl_mark) and one allMids for the dex (feeds hl_mid).
package hyperliquid

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

// Subscription channels routed by the "channel" field.
const (
	channelSubscriptionResponse = "subscriptionResponse"
	channelActiveAssetCtx       = "activeAssetCtx"
	channelAllMids              = "allMids"
	channelPong                 = "pong"
	channelError                = "error"
)

// Listener owns one WebSocket session per configured URL, each reconnecting
// independently with exponential backoff (1s doubling to 10s).
type Listener struct {
	marketName   string
	urls         []string
	symbols      []string
	pingInterval time.Duration
	staleTimeout time.Duration

	oracleState *state.PriceSourceState
	markState   *state.PriceSourceState
	midState    *state.PriceSourceState
	logger      *logging.Logger
}

// New creates a Hyperliquid listener writing into the hl_oracle, hl_mark, and
// hl_mid state stores.
func New(cfg *config.Config, states *state.Set, logger *logging.Logger) *Listener {
	return &Listener{
		marketName:   cfg.Hyperliquid.MarketName,
		urls:         cfg.Hyperliquid.WSURLs,
		symbols:      cfg.Hyperliquid.AssetContextSymbols,
		pingInterval: cfg.Hyperliquid.WSPingInterval.ToDuration(),
		staleTimeout: sources.DefaultStaleTimeout,
		oracleState:  states.HLOracle,
		markState:    states.HLMark,
		midState:     states.HLMid,
		logger:       logger.With("source", "hyperliquid"),
	}
}

// Run starts one session loop per URL and blocks until the context is canceled.
func (l *Listener) Run(ctx context.Context) {
	if len(l.urls) == 0 || len(l.symbols) == 0 {
		l.logger.Info("no Hyperliquid URLs or symbols configured, listener disabled")
		return
	}

	done := make(chan struct{}, len(l.urls))
	for _, url := range l.urls {
		url := url
		go func() {
			sources.RunLoop(ctx, l.logger, "hyperliquid", url,
				sources.NewExponentialBackoff(time.Second, 10*time.Second),
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

// session runs one connect-subscribe-stream cycle. Any returned error causes a
// reconnect with backoff.
func (l *Listener) session(ctx context.Context, url string) error {
	conn, err := stream.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, symbol := range l.symbols {
		req := map[string]interface{}{
			"method":       "subscribe",
			"subscription": map[string]string{"type": "activeAssetCtx", "coin": symbol},
		}
		if err := conn.WriteJSON(req); err != nil {
			return err
		}
		l.logger.Info("sent activeAssetCtx subscribe", "symbol", symbol, "url", url)
	}

	allMidsReq := map[string]interface{}{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids", "dex": l.marketName},
	}
	if err := conn.WriteJSON(allMidsReq); err != nil {
		return err
	}
	l.logger.Info("sent allMids subscribe", "dex", l.marketName, "url", url)

	lastPing := time.Now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := conn.ReadMessage(l.staleTimeout)
		if err != nil {
			return err
		}
		l.handleMessage(msg, float64(time.Now().UnixNano())/1e9)

		if time.Since(lastPing) > l.pingInterval {
			if err := conn.WriteJSON(map[string]string{"method": "ping"}); err != nil {
				return err
			}
			lastPing = time.Now()
		}
	}
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type assetCtxData struct {
	Coin string `json:"coin"`
	Ctx  struct {
		OraclePx string `json:"oraclePx"`
		MarkPx   string `json:"markPx"`
	} `json:"ctx"`
}

type allMidsData struct {
	Mids map[string]string `json:"mids"`
}

// handleMessage routes one inbound message. Malformed payloads are logged and
// skipped without faulting the connection.
func (l *Listener) handleMessage(msg []byte, now float64) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		l.logger.Warn("failed to decode message", "error", err)
		return
	}

	switch m.Channel {
	case "":
		l.logger.Error("no channel in message")
	case channelSubscriptionResponse:
		l.logger.Info("received subscription response")
	case channelError:
		l.logger.Error("received venue error response", "data", string(m.Data))
	case channelPong:
		l.logger.Debug("received pong")
	case channelActiveAssetCtx:
		l.parseActiveAssetCtx(m.Data, now)
	case channelAllMids:
		l.parseAllMids(m.Data, now)
	default:
		l.logger.Error("received unknown channel", "channel", m.Channel)
	}
}

func (l *Listener) parseActiveAssetCtx(data json.RawMessage, now float64) {
	var ctx assetCtxData
	if err := json.Unmarshal(data, &ctx); err != nil {
		l.logger.Warn("failed to parse activeAssetCtx", "error", err)
		return
	}
	if ctx.Coin == "" || ctx.Ctx.OraclePx == "" {
		l.logger.Warn("activeAssetCtx missing coin or oraclePx")
		return
	}
	l.oracleState.Put(ctx.Coin, state.PriceUpdate{Price: ctx.Ctx.OraclePx, Timestamp: now})
	l.markState.Put(ctx.Coin, state.PriceUpdate{Price: ctx.Ctx.MarkPx, Timestamp: now})
	metrics.RecordSourceUpdate("hyperliquid")
	l.logger.Debug("activeAssetCtx update",
		"coin", ctx.Coin, "oraclePx", ctx.Ctx.OraclePx, "markPx", ctx.Ctx.MarkPx)
}

func (l *Listener) parseAllMids(data json.RawMessage, now float64) {
	var mids allMidsData
	if err := json.Unmarshal(data, &mids); err != nil {
		l.logger.Warn("failed to parse allMids", "error", err)
		return
	}
	for symbol, px := range mids.Mids {
		l.midState.Put(symbol, state.PriceUpdate{Price: px, Timestamp: now})
	}
	if len(mids.Mids) > 0 {
		metrics.RecordSourceUpdate("hyperliquid")
	}
}
