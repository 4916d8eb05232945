package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `
stale_price_threshold_seconds: 4

hyperliquid:
  ws_urls:
    - wss://api.hyperliquid-testnet.xyz/ws
  market_name: pyth
  asset_context_symbols:
    - "pyth:BTC"
  use_testnet: true
  enable_publish: true
  oracle_pusher_key_path: /run/secrets/pusher.key
  publish_interval: 3s

lazer:
  urls:
    - wss://lazer.example.com/v1/stream
  api_key_env: LAZER_API_KEY
  feed_ids: [1, 2]

price:
  oracle:
    BTC:
      - source_type: single
        source:
          source_name: hl_oracle
          source_id: "pyth:BTC"
      - source_type: single
        source:
          source_name: lazer
          source_id: 1
          exponent: -8
      - source_type: pair
        base_source:
          source_name: lazer
          source_id: 1
          exponent: -8
        quote_source:
          source_name: lazer
          source_id: 2
          exponent: -8
  mark:
    BTC:
      - source_type: oracle_mid_average
        symbol: "pyth:BTC"
      - source_type: session_ema
        oracle_source:
          source_name: seda
          source_id: gold
        ema_source:
          source_name: seda_ema
          source_id: gold
  external:
    BTC:
      - source_type: constant
        value: "1.0"
`

func loadConfig(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadSampleConfig(t *testing.T) {
	cfg := loadConfig(t, sampleConfig)

	assert.Equal(t, 4.0, cfg.StaleThreshold())
	assert.Equal(t, "pyth", cfg.Hyperliquid.MarketName)
	assert.Equal(t, 3*time.Second, cfg.Hyperliquid.PublishInterval.ToDuration())

	oracle := cfg.Price.Oracle["BTC"]
	require.Len(t, oracle, 3)
	assert.Equal(t, SourceTypeSingle, oracle[0].Type)
	assert.Equal(t, SourceID("pyth:BTC"), oracle[0].Single.Source.SourceID)

	// Numeric source ids normalize to strings.
	assert.Equal(t, SourceID("1"), oracle[1].Single.Source.SourceID)
	require.NotNil(t, oracle[1].Single.Source.Exponent)
	assert.Equal(t, -8, *oracle[1].Single.Source.Exponent)

	assert.Equal(t, SourceTypePair, oracle[2].Type)
	assert.Equal(t, SourceID("2"), oracle[2].Pair.QuoteSource.SourceID)

	mark := cfg.Price.Mark["BTC"]
	require.Len(t, mark, 2)
	assert.Equal(t, "pyth:BTC", mark[0].OracleMidAverage.Symbol)
	assert.Equal(t, SourceID("gold"), mark[1].SessionEMA.EMASource.SourceID)

	require.NoError(t, Validate(cfg))
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := loadConfig(t, "hyperliquid:\n  market_name: pyth\n  use_testnet: true\n")

	assert.Equal(t, 5.0, cfg.StaleThreshold())
	assert.Equal(t, 3*time.Second, cfg.Hyperliquid.PublishInterval.ToDuration())
	assert.Equal(t, 30*time.Minute, cfg.Hyperliquid.UserLimitInterval.ToDuration())
	assert.Equal(t, []string{"https://api.hyperliquid-testnet.xyz"}, cfg.Hyperliquid.PushURLs)
	assert.Equal(t, "price", cfg.Seda.PriceField)
	assert.Equal(t, "timestamp", cfg.Seda.TimestampField)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_MARKET_NAME", "pyth")
	cfg := loadConfig(t, "hyperliquid:\n  market_name: ${TEST_MARKET_NAME}\n")
	assert.Equal(t, "pyth", cfg.Hyperliquid.MarketName)
}

func TestUnknownSourceTypeRejected(t *testing.T) {
	var chain []PriceSourceConfig
	err := yaml.Unmarshal([]byte("- source_type: moving_average\n  window: 5\n"), &chain)
	assert.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestSourceIDRejectsOtherTypes(t *testing.T) {
	var id SourceID
	err := yaml.Unmarshal([]byte("[1, 2]"), &id)
	assert.Error(t, err)
}

func TestLazerAPIKeyIndirection(t *testing.T) {
	cfg := &Config{Lazer: LazerConfig{APIKey: "inline", APIKeyEnv: "TEST_LAZER_KEY"}}

	t.Setenv("TEST_LAZER_KEY", "from-env")
	assert.Equal(t, "from-env", cfg.LazerAPIKey())

	t.Setenv("TEST_LAZER_KEY", "")
	assert.Equal(t, "inline", cfg.LazerAPIKey())
}

func validBase() *Config {
	return &Config{
		Hyperliquid: HyperliquidConfig{
			MarketName:          "pyth",
			EnablePublish:       true,
			OraclePusherKeyPath: "/run/secrets/pusher.key",
			PushURLs:            []string{"https://api.hyperliquid-testnet.xyz"},
		},
	}
}

func TestValidateRejectsMisconfigurations(t *testing.T) {
	t.Run("missing market name", func(t *testing.T) {
		cfg := validBase()
		cfg.Hyperliquid.MarketName = ""
		assert.ErrorIs(t, Validate(cfg), ErrMissingMarketName)
	})

	t.Run("kms and multisig together", func(t *testing.T) {
		cfg := validBase()
		cfg.KMS = KMSConfig{Enabled: true, URL: "https://kms.example.com"}
		cfg.Multisig = MultisigConfig{Enabled: true, Address: "0xabc"}
		assert.ErrorIs(t, Validate(cfg), ErrKMSAndMultisig)
	})

	t.Run("multisig without address", func(t *testing.T) {
		cfg := validBase()
		cfg.Multisig = MultisigConfig{Enabled: true}
		assert.ErrorIs(t, Validate(cfg), ErrMissingMultisigAddress)
	})

	t.Run("kms without url", func(t *testing.T) {
		cfg := validBase()
		cfg.KMS = KMSConfig{Enabled: true}
		assert.ErrorIs(t, Validate(cfg), ErrMissingKMSURL)
	})

	t.Run("publishing without key path", func(t *testing.T) {
		cfg := validBase()
		cfg.Hyperliquid.OraclePusherKeyPath = ""
		assert.ErrorIs(t, Validate(cfg), ErrMissingKeyPath)
	})

	t.Run("publishing without push urls", func(t *testing.T) {
		cfg := validBase()
		cfg.Hyperliquid.PushURLs = nil
		assert.ErrorIs(t, Validate(cfg), ErrNoPushURLs)
	})
}

func TestValidateChains(t *testing.T) {
	t.Run("session_ema outside mark rejected", func(t *testing.T) {
		cfg := validBase()
		cfg.Price.Oracle = map[string][]PriceSourceConfig{
			"BTC": {{
				Type: SourceTypeSessionEMA,
				SessionEMA: &SessionEMASource{
					OracleSource: PriceSource{SourceName: "seda", SourceID: "gold"},
					EMASource:    PriceSource{SourceName: "seda_ema", SourceID: "gold"},
				},
			}},
		}
		assert.ErrorIs(t, Validate(cfg), ErrMarkOnlySource)
	})

	t.Run("oracle_mid_average in mark accepted", func(t *testing.T) {
		cfg := validBase()
		cfg.Price.Mark = map[string][]PriceSourceConfig{
			"BTC": {{
				Type:             SourceTypeOracleMidAverage,
				OracleMidAverage: &OracleMidAverageSource{Symbol: "pyth:BTC"},
			}},
		}
		assert.NoError(t, Validate(cfg))
	})

	t.Run("unknown source name rejected", func(t *testing.T) {
		cfg := validBase()
		cfg.Price.Oracle = map[string][]PriceSourceConfig{
			"BTC": {{
				Type:   SourceTypeSingle,
				Single: &SingleSource{Source: PriceSource{SourceName: "binance", SourceID: "BTCUSDT"}},
			}},
		}
		assert.ErrorIs(t, Validate(cfg), ErrUnknownSourceName)
	})

	t.Run("empty source id rejected", func(t *testing.T) {
		cfg := validBase()
		cfg.Price.External = map[string][]PriceSourceConfig{
			"BTC": {{
				Type:   SourceTypeSingle,
				Single: &SingleSource{Source: PriceSource{SourceName: "hermes"}},
			}},
		}
		assert.Error(t, Validate(cfg))
	})
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"2.5s"`), &d))
	assert.Equal(t, 2500*time.Millisecond, d.ToDuration())

	assert.Error(t, yaml.Unmarshal([]byte(`"fast"`), &d))
}
