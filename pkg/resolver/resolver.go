// Package resolver computes the per-cycle oracle, mark, and external price
// maps from the source state stores.
//
// Waterfall logic: each symbol has an ordered list of source recipes; recipes
// are tried in order and the first one whose inputs are all present and fresh
// wins. A symbol with no resolvable recipe is omitted from the result, never
// an error.
package resolver

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/state"
)

// Update is the complete set of prices for one publish cycle, keyed
// "{dex}:{symbol}". Mark values carry one entry for a scalar recipe and two
// for a session-EMA recipe.
type Update struct {
	Oracle   map[string]string
	Mark     map[string][]string
	External map[string]string
}

// Resolver evaluates the configured fallback chains against the live state.
type Resolver struct {
	threshold float64
	price     config.PriceConfig
	states    *state.Set
	logger    *logging.Logger

	now func() float64
}

// New creates a resolver over the shared state set.
func New(cfg *config.Config, states *state.Set, logger *logging.Logger) *Resolver {
	return &Resolver{
		threshold: cfg.StaleThreshold(),
		price:     cfg.Price,
		states:    states,
		logger:    logger.With("component", "resolver"),
		now: func() float64 {
			return float64(time.Now().UnixNano()) / 1e9
		},
	}
}

// Resolve computes all three price maps for the given dex identifier.
//
// Oracle prices are computed first: mark chains with an oracle_mid_average
// recipe reference the oracle map from the same cycle.
func (r *Resolver) Resolve(dex string) *Update {
	update := &Update{
		Oracle:   make(map[string]string),
		Mark:     make(map[string][]string),
		External: make(map[string]string),
	}

	for symbol, chain := range r.price.Oracle {
		if px, ok := r.resolveScalarChain(symbol, chain); ok {
			update.Oracle[key(dex, symbol)] = px
		}
	}
	for symbol, chain := range r.price.Mark {
		if pxs, ok := r.resolveMarkChain(dex, symbol, chain, update.Oracle); ok {
			update.Mark[key(dex, symbol)] = pxs
		}
	}
	for symbol, chain := range r.price.External {
		if px, ok := r.resolveScalarChain(symbol, chain); ok {
			update.External[key(dex, symbol)] = px
		}
	}

	return update
}

func key(dex, symbol string) string {
	return fmt.Sprintf("%s:%s", dex, symbol)
}

// resolveScalarChain evaluates an oracle or external fallback chain.
func (r *Resolver) resolveScalarChain(symbol string, chain []config.PriceSourceConfig) (string, bool) {
	for _, entry := range chain {
		switch entry.Type {
		case config.SourceTypeConstant:
			return entry.Constant.Value, true
		case config.SourceTypeSingle:
			if px, ok := r.resolveSingle(entry.Single.Source); ok {
				return px, true
			}
		case config.SourceTypePair:
			if px, ok := r.resolvePair(entry.Pair.BaseSource, entry.Pair.QuoteSource); ok {
				return px, true
			}
		default:
			// Mark-only recipes are rejected at config load; skip defensively.
			r.logger.Warn("unsupported recipe in scalar chain", "symbol", symbol, "type", entry.Type)
		}
	}
	r.logger.Warn("no valid price for symbol", "symbol", symbol)
	return "", false
}

// resolveMarkChain evaluates a mark fallback chain. Scalar recipes yield one
// value, session-EMA recipes yield two.
func (r *Resolver) resolveMarkChain(dex, symbol string, chain []config.PriceSourceConfig, oracle map[string]string) ([]string, bool) {
	for _, entry := range chain {
		switch entry.Type {
		case config.SourceTypeConstant:
			return []string{entry.Constant.Value}, true
		case config.SourceTypeSingle:
			if px, ok := r.resolveSingle(entry.Single.Source); ok {
				return []string{px}, true
			}
		case config.SourceTypePair:
			if px, ok := r.resolvePair(entry.Pair.BaseSource, entry.Pair.QuoteSource); ok {
				return []string{px}, true
			}
		case config.SourceTypeOracleMidAverage:
			if px, ok := r.resolveOracleMidAverage(entry.OracleMidAverage.Symbol, oracle); ok {
				return []string{px}, true
			}
		case config.SourceTypeSessionEMA:
			if pxs, ok := r.resolveSessionEMA(entry.SessionEMA.OracleSource, entry.SessionEMA.EMASource); ok {
				return pxs, true
			}
		default:
			r.logger.Warn("unsupported recipe in mark chain", "symbol", symbol, "type", entry.Type)
		}
	}
	r.logger.Warn("no valid mark price for symbol", "dex", dex, "symbol", symbol)
	return nil, false
}

// lookup fetches the update for a source and applies the session-flag gate and
// the staleness cutoff (age >= threshold is stale).
func (r *Resolver) lookup(src config.PriceSource) (state.PriceUpdate, bool) {
	store := r.states.ByName(src.SourceName)
	if store == nil {
		r.logger.Warn("source is unknown", "source", src.SourceName)
		return state.PriceUpdate{}, false
	}
	update, ok := store.Get(string(src.SourceID))
	if !ok {
		r.logger.Warn("source id is missing", "source", src.SourceName, "id", string(src.SourceID))
		return state.PriceUpdate{}, false
	}
	if src.UseSessionFlag && !update.SessionFlag {
		r.logger.Debug("session flag not set for session-aware source",
			"source", src.SourceName, "id", string(src.SourceID))
		return state.PriceUpdate{}, false
	}
	if age := update.Age(r.now()); age >= r.threshold {
		r.logger.Warn("source is stale",
			"source", src.SourceName, "id", string(src.SourceID), "age_seconds", age)
		return state.PriceUpdate{}, false
	}
	return update, true
}

// resolveSingle returns a source value verbatim, scaled by 10^exponent when an
// exponent is configured.
func (r *Resolver) resolveSingle(src config.PriceSource) (string, bool) {
	update, ok := r.lookup(src)
	if !ok {
		return "", false
	}
	if src.Exponent == nil {
		return update.Price, true
	}
	d, err := decimal.NewFromString(update.Price)
	if err != nil {
		r.logger.Warn("source value is not a valid decimal",
			"source", src.SourceName, "id", string(src.SourceID), "value", update.Price)
		return "", false
	}
	return d.Shift(int32(*src.Exponent)).String(), true
}

// resolvePair returns scaled_base / scaled_quote rounded to two fraction
// digits. Both legs must be present and fresh; a zero quote fails the recipe.
func (r *Resolver) resolvePair(base, quote config.PriceSource) (string, bool) {
	basePx, ok := r.resolveSingle(base)
	if !ok {
		return "", false
	}
	quotePx, ok := r.resolveSingle(quote)
	if !ok {
		return "", false
	}

	b, err := decimal.NewFromString(basePx)
	if err != nil {
		return "", false
	}
	q, err := decimal.NewFromString(quotePx)
	if err != nil || q.IsZero() {
		return "", false
	}

	return b.Div(q).Round(2).StringFixed(2), true
}

// resolveOracleMidAverage averages the already-resolved oracle price for the
// full "{dex}:{symbol}" key with the venue mid price for the same key.
func (r *Resolver) resolveOracleMidAverage(symbolKey string, oracle map[string]string) (string, bool) {
	oraclePx, ok := oracle[symbolKey]
	if !ok {
		return "", false
	}

	update, ok := r.states.HLMid.Get(symbolKey)
	if !ok {
		r.logger.Warn("mid price is missing", "symbol", symbolKey)
		return "", false
	}
	if age := update.Age(r.now()); age >= r.threshold {
		r.logger.Warn("mid price is stale", "symbol", symbolKey, "age_seconds", age)
		return "", false
	}

	o, err := decimal.NewFromString(oraclePx)
	if err != nil {
		return "", false
	}
	m, err := decimal.NewFromString(update.Price)
	if err != nil {
		return "", false
	}

	return o.Add(m).Div(decimal.NewFromInt(2)).String(), true
}

// resolveSessionEMA returns two mark values for the symbol. During trading
// hours (session flag unset) the slots are [oracle, ema]; off-hours, or when
// the EMA value is missing, the oracle value fills both slots.
func (r *Resolver) resolveSessionEMA(oracleSrc, emaSrc config.PriceSource) ([]string, bool) {
	update, ok := r.lookup(oracleSrc)
	if !ok {
		return nil, false
	}

	if update.SessionFlag {
		return []string{update.Price, update.Price}, true
	}

	emaPx, ok := r.resolveSingle(emaSrc)
	if !ok {
		r.logger.Warn("ema price is missing, falling back to oracle for both mark slots",
			"source", emaSrc.SourceName, "id", string(emaSrc.SourceID))
		return []string{update.Price, update.Price}, true
	}

	return []string{update.Price, emaPx}, true
}
