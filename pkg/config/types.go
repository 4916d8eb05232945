package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	StalePriceThresholdSeconds float64 `yaml:"stale_price_threshold_seconds"`

	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	KMS         KMSConfig         `yaml:"kms"`
	Multisig    MultisigConfig    `yaml:"multisig"`
	Lazer       LazerConfig       `yaml:"lazer"`
	Hermes      HermesConfig      `yaml:"hermes"`
	Seda        SedaConfig        `yaml:"seda"`
	Price       PriceConfig       `yaml:"price"`
	Redis       RedisConfig       `yaml:"redis"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HyperliquidConfig configures the venue connection: WebSocket listeners for
// reference prices and the publisher for pushing oracle updates.
type HyperliquidConfig struct {
	WSURLs              []string `yaml:"ws_urls"`
	PushURLs            []string `yaml:"push_urls"`
	MarketName          string   `yaml:"market_name"` // HIP-3 dex identifier
	AssetContextSymbols []string `yaml:"asset_context_symbols"`
	UseTestnet          bool     `yaml:"use_testnet"`
	OraclePusherKeyPath string   `yaml:"oracle_pusher_key_path"`
	PublishInterval     Duration `yaml:"publish_interval"`
	PublishTimeout      Duration `yaml:"publish_timeout"`
	EnablePublish       bool     `yaml:"enable_publish"`
	UserLimitInterval   Duration `yaml:"user_limit_interval"`
	WSPingInterval      Duration `yaml:"ws_ping_interval"`
}

// KMSConfig configures the external key-management signing service.
type KMSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	KeyID   string `yaml:"key_id"`
}

// MultisigConfig configures multisig co-signing of oracle updates.
type MultisigConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LazerConfig configures the Lazer WebSocket feeds. Feed IDs are numeric.
type LazerConfig struct {
	URLs      []string `yaml:"urls"`
	APIKey    string   `yaml:"api_key"`
	APIKeyEnv string   `yaml:"api_key_env"`
	FeedIDs   []int64  `yaml:"feed_ids"`
}

// HermesConfig configures the Hermes WebSocket feeds. Feed IDs are hex strings.
type HermesConfig struct {
	URLs    []string `yaml:"urls"`
	FeedIDs []string `yaml:"feed_ids"`
}

// SedaFeedConfig configures a single SEDA oracle feed.
type SedaFeedConfig struct {
	ExecProgramID string `yaml:"exec_program_id"`
	ExecInputs    string `yaml:"exec_inputs"` // JSON string passed through as a query param
}

// SedaConfig configures SEDA HTTP polling. Field names in the response JSON
// can be overridden per deployment.
type SedaConfig struct {
	URL                 string                    `yaml:"url"`
	APIKeyPath          string                    `yaml:"api_key_path"`
	PollInterval        Duration                  `yaml:"poll_interval"`
	PollFailureInterval Duration                  `yaml:"poll_failure_interval"`
	PollTimeout         Duration                  `yaml:"poll_timeout"`
	Feeds               map[string]SedaFeedConfig `yaml:"feeds"`
	PriceField          string                    `yaml:"price_field"`
	TimestampField      string                    `yaml:"timestamp_field"`
	LastPriceField      string                    `yaml:"last_price_field"`
	SessionFlagField    string                    `yaml:"session_flag_field"`
	SessionEMAField     string                    `yaml:"session_ema_field"`
}

// RedisConfig configures the optional last-push snapshot store.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PriceConfig holds the per-symbol fallback chains for the three price
// categories. Chain order is priority order: the first fully resolvable,
// non-stale entry wins.
type PriceConfig struct {
	Oracle   map[string][]PriceSourceConfig `yaml:"oracle"`
	Mark     map[string][]PriceSourceConfig `yaml:"mark"`
	External map[string][]PriceSourceConfig `yaml:"external"`
}

// PriceSource identifies where to read a value from and how to scale it.
type PriceSource struct {
	SourceName     string   `yaml:"source_name"`
	SourceID       SourceID `yaml:"source_id"`
	Exponent       *int     `yaml:"exponent"`
	UseSessionFlag bool     `yaml:"use_session_flag"`
}

// SourceID accepts either a string or an integer in YAML and normalizes to a
// string key (Lazer feed IDs are numeric, everything else is a string).
type SourceID string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *SourceID) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int":
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*s = SourceID(strconv.FormatInt(n, 10))
		return nil
	case "!!str":
		*s = SourceID(value.Value)
		return nil
	default:
		return fmt.Errorf("source_id must be a string or integer, got %s", value.Tag)
	}
}

// Source type tags for PriceSourceConfig.
const (
	SourceTypeConstant         = "constant"
	SourceTypeSingle           = "single"
	SourceTypePair             = "pair"
	SourceTypeOracleMidAverage = "oracle_mid_average"
	SourceTypeSessionEMA       = "session_ema"
)

// ConstantSource always resolves to a literal value, with no freshness check.
type ConstantSource struct {
	Value string `yaml:"value"`
}

// SingleSource resolves one price source directly.
type SingleSource struct {
	Source PriceSource `yaml:"source"`
}

// PairSource resolves base/quote as a ratio. Both legs must be fresh.
type PairSource struct {
	BaseSource  PriceSource `yaml:"base_source"`
	QuoteSource PriceSource `yaml:"quote_source"`
}

// OracleMidAverageSource averages the already-resolved oracle price for the
// full "{dex}:{symbol}" key with the venue mid price.
type OracleMidAverageSource struct {
	Symbol string `yaml:"symbol"`
}

// SessionEMASource produces a pair of mark values: the live oracle value plus
// a session EMA value (or the oracle value twice outside trading hours).
type SessionEMASource struct {
	OracleSource PriceSource `yaml:"oracle_source"`
	EMASource    PriceSource `yaml:"ema_source"`
}

// PriceSourceConfig is one fallback-chain entry: a closed tagged union selected
// by the source_type field. Unknown tags are rejected at parse time.
type PriceSourceConfig struct {
	Type             string
	Constant         *ConstantSource
	Single           *SingleSource
	Pair             *PairSource
	OracleMidAverage *OracleMidAverageSource
	SessionEMA       *SessionEMASource
}

// UnmarshalYAML implements yaml.Unmarshaler
func (c *PriceSourceConfig) UnmarshalYAML(value *yaml.Node) error {
	var probe struct {
		SourceType string `yaml:"source_type"`
	}
	if err := value.Decode(&probe); err != nil {
		return err
	}

	c.Type = probe.SourceType
	switch probe.SourceType {
	case SourceTypeConstant:
		var v ConstantSource
		if err := value.Decode(&v); err != nil {
			return err
		}
		c.Constant = &v
	case SourceTypeSingle:
		var v SingleSource
		if err := value.Decode(&v); err != nil {
			return err
		}
		c.Single = &v
	case SourceTypePair:
		var v PairSource
		if err := value.Decode(&v); err != nil {
			return err
		}
		c.Pair = &v
	case SourceTypeOracleMidAverage:
		var v OracleMidAverageSource
		if err := value.Decode(&v); err != nil {
			return err
		}
		c.OracleMidAverage = &v
	case SourceTypeSessionEMA:
		var v SessionEMASource
		if err := value.Decode(&v); err != nil {
			return err
		}
		c.SessionEMA = &v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceType, probe.SourceType)
	}
	return nil
}

// String returns a human-readable description of the chain entry.
func (c PriceSourceConfig) String() string {
	switch c.Type {
	case SourceTypeConstant:
		return fmt.Sprintf("constant(%s)", c.Constant.Value)
	case SourceTypeSingle:
		return fmt.Sprintf("single(%s:%s)", c.Single.Source.SourceName, c.Single.Source.SourceID)
	case SourceTypePair:
		return fmt.Sprintf("pair(%s:%s / %s:%s)",
			c.Pair.BaseSource.SourceName, c.Pair.BaseSource.SourceID,
			c.Pair.QuoteSource.SourceName, c.Pair.QuoteSource.SourceID)
	case SourceTypeOracleMidAverage:
		return fmt.Sprintf("oracle_mid_average(%s)", c.OracleMidAverage.Symbol)
	case SourceTypeSessionEMA:
		return fmt.Sprintf("session_ema(%s:%s, %s:%s)",
			c.SessionEMA.OracleSource.SourceName, c.SessionEMA.OracleSource.SourceID,
			c.SessionEMA.EMASource.SourceName, c.SessionEMA.EMASource.SourceID)
	default:
		return "unknown"
	}
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
