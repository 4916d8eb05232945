// Package publisher runs the periodic resolve-sign-push cycle against the
// venue's setOracle endpoint.
package publisher

import (
	"context"
	"strings"
	"time"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
	"tc.com/oracle-relayer/pkg/resolver"
	"tc.com/oracle-relayer/pkg/signer"
	"tc.com/oracle-relayer/pkg/store"
)

// Publisher pushes one signed oracle update per publish interval. The loop is
// self-healing: any per-cycle failure is logged and counted, never fatal.
type Publisher struct {
	marketName    string
	useTestnet    bool
	enablePublish bool
	interval      time.Duration

	resolver  *resolver.Resolver
	signer    signer.Signer
	multisig  *signer.Multisig
	client    *client
	snapshots *store.Store
	logger    *logging.Logger

	lastPush time.Time
}

// New creates a publisher. Multisig signers are routed to the dedicated
// multisig submission endpoint; snapshots may be nil when Redis is not
// configured.
func New(cfg *config.Config, res *resolver.Resolver, sig signer.Signer, snapshots *store.Store, logger *logging.Logger) *Publisher {
	log := logger.With("component", "publisher")

	path := exchangePath
	multisig, _ := sig.(*signer.Multisig)
	if multisig != nil {
		path = multisigPath
	}

	return &Publisher{
		marketName:    cfg.Hyperliquid.MarketName,
		useTestnet:    cfg.Hyperliquid.UseTestnet,
		enablePublish: cfg.Hyperliquid.EnablePublish,
		interval:      cfg.Hyperliquid.PublishInterval.ToDuration(),
		resolver:      res,
		signer:        sig,
		multisig:      multisig,
		client:        newClient(cfg.Hyperliquid.PushURLs, path, cfg.Hyperliquid.PublishTimeout.ToDuration(), log),
		snapshots:     snapshots,
		logger:        log,
		lastPush:      time.Now(),
	}
}

// Run publishes on every interval tick until the context is canceled.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("publisher started",
		"dex", p.marketName, "interval", p.interval.String(), "publish_enabled", p.enablePublish)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one resolve-sign-push cycle.
func (p *Publisher) tick(ctx context.Context) {
	defer p.recordPushInterval()

	update := p.resolver.Resolve(p.marketName)
	if len(update.Oracle) == 0 {
		p.logger.Error("no valid oracle prices available", "dex", p.marketName)
		metrics.RecordNoOraclePrice(p.marketName)
		return
	}

	if !p.enablePublish {
		p.logger.Debug("publishing disabled, skipping push")
		return
	}

	symbols := sortedKeys(update.Oracle)
	if err := p.push(ctx, update, symbols); err != nil {
		p.logger.Error("push cycle failed", "error", err)
		p.recordAttempts("error", ReasonInternalError, symbols)
	}
}

func (p *Publisher) push(ctx context.Context, update *resolver.Update, symbols []string) error {
	nonce := uint64(time.Now().UnixMilli())
	action := buildAction(p.marketName, update.Oracle, ConstructMarkRounds(update.Mark), update.External)

	actionHash, err := signer.ActionHash(action, nonce)
	if err != nil {
		return err
	}
	sig, err := p.signer.Sign(signer.SigningDigest(actionHash, !p.useTestnet))
	if err != nil {
		return err
	}

	var body interface{}
	if p.multisig != nil {
		body = multisigRequest{
			Action:       action,
			Nonce:        nonce,
			Signatures:   []signer.Signature{sig},
			MultiSigUser: strings.ToLower(p.multisig.Address().Hex()),
			OuterSigner:  strings.ToLower(p.multisig.SignerAddress().Hex()),
		}
	} else {
		body = pushRequest{Action: action, Nonce: nonce, Signature: sig}
	}

	resp, err := p.client.post(ctx, body)
	if err != nil {
		return err
	}

	p.handleResponse(ctx, resp, update, symbols)
	return nil
}

func (p *Publisher) handleResponse(ctx context.Context, resp pushResponse, update *resolver.Update, symbols []string) {
	switch resp.Status {
	case "ok":
		p.recordAttempts("success", ReasonNone, symbols)
		now := time.Now()
		for _, symbol := range symbols {
			metrics.RecordLastPushed(p.marketName, symbol, now)
		}
		// Ok replies can still carry data, typically price clamping notices.
		if data, ok := okResponseData(resp.Response); ok {
			p.logger.Info("ok response data", "data", data)
		}
		p.saveSnapshot(ctx, update, now)
	case "err":
		reason := classifyReason(resp.Response)
		p.recordAttempts("error", reason, symbols)
		// Rate limiting is expected when redundant relayers share a dex.
		if reason != ReasonRateLimit {
			p.logger.Error("error response from venue",
				"reason", string(reason), "response", resp.Response)
		}
	default:
		p.logger.Error("unexpected response status", "status", resp.Status)
	}
}

func okResponseData(response interface{}) (interface{}, bool) {
	m, ok := response.(map[string]interface{})
	if !ok {
		return nil, false
	}
	data, ok := m["data"]
	return data, ok && data != nil
}

func (p *Publisher) recordAttempts(status string, reason Reason, symbols []string) {
	if reason == ReasonRateLimit {
		return
	}
	for _, symbol := range symbols {
		metrics.RecordPushAttempt(p.marketName, status, string(reason), symbol)
	}
}

func (p *Publisher) recordPushInterval() {
	now := time.Now()
	metrics.RecordPushInterval(p.marketName, now.Sub(p.lastPush))
	p.lastPush = now
}

func (p *Publisher) saveSnapshot(ctx context.Context, update *resolver.Update, pushedAt time.Time) {
	if p.snapshots == nil {
		return
	}
	err := p.snapshots.SaveSnapshot(ctx, store.Snapshot{
		Dex:      p.marketName,
		Oracle:   update.Oracle,
		Mark:     update.Mark,
		External: update.External,
		PushedAt: pushedAt,
	})
	if err != nil {
		p.logger.Warn("failed to save push snapshot", "error", err)
	}
}
