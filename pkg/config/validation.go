package config

import "fmt"

// knownSourceNames are the source_name values that map to a state store.
var knownSourceNames = map[string]bool{
	"hl_oracle": true,
	"hl_mark":   true,
	"hl_mid":    true,
	"lazer":     true,
	"hermes":    true,
	"seda":      true,
	"seda_last": true,
	"seda_ema":  true,
}

// Validate checks the configuration for misconfigurations that must abort
// startup. Everything here is checked eagerly so that bad fallback chains or
// signer combinations never surface mid-flight.
func Validate(cfg *Config) error {
	if cfg.Hyperliquid.MarketName == "" {
		return ErrMissingMarketName
	}

	if cfg.KMS.Enabled && cfg.Multisig.Enabled {
		return ErrKMSAndMultisig
	}
	if cfg.Multisig.Enabled && cfg.Multisig.Address == "" {
		return ErrMissingMultisigAddress
	}
	if cfg.KMS.Enabled && cfg.KMS.URL == "" {
		return ErrMissingKMSURL
	}
	if !cfg.KMS.Enabled && cfg.Hyperliquid.EnablePublish && cfg.Hyperliquid.OraclePusherKeyPath == "" {
		return ErrMissingKeyPath
	}
	if cfg.Hyperliquid.EnablePublish && len(cfg.Hyperliquid.PushURLs) == 0 {
		return ErrNoPushURLs
	}

	if err := validateChains("oracle", cfg.Price.Oracle, false); err != nil {
		return err
	}
	if err := validateChains("mark", cfg.Price.Mark, true); err != nil {
		return err
	}
	if err := validateChains("external", cfg.Price.External, false); err != nil {
		return err
	}

	return nil
}

// validateChains validates each fallback chain of one price category.
// Session-EMA and oracle-mid-average entries only make sense for mark prices.
func validateChains(category string, chains map[string][]PriceSourceConfig, allowMarkOnly bool) error {
	for symbol, chain := range chains {
		for i, entry := range chain {
			if err := validateEntry(entry, allowMarkOnly); err != nil {
				return fmt.Errorf("%s chain for %q entry %d: %w", category, symbol, i, err)
			}
		}
	}
	return nil
}

func validateEntry(entry PriceSourceConfig, allowMarkOnly bool) error {
	switch entry.Type {
	case SourceTypeConstant:
		if entry.Constant.Value == "" {
			return fmt.Errorf("constant entry has empty value")
		}
		return nil
	case SourceTypeSingle:
		return validateSource(entry.Single.Source)
	case SourceTypePair:
		if err := validateSource(entry.Pair.BaseSource); err != nil {
			return err
		}
		return validateSource(entry.Pair.QuoteSource)
	case SourceTypeOracleMidAverage:
		if !allowMarkOnly {
			return fmt.Errorf("%w: %s", ErrMarkOnlySource, entry.Type)
		}
		if entry.OracleMidAverage.Symbol == "" {
			return fmt.Errorf("oracle_mid_average entry has empty symbol")
		}
		return nil
	case SourceTypeSessionEMA:
		if !allowMarkOnly {
			return fmt.Errorf("%w: %s", ErrMarkOnlySource, entry.Type)
		}
		if err := validateSource(entry.SessionEMA.OracleSource); err != nil {
			return err
		}
		return validateSource(entry.SessionEMA.EMASource)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceType, entry.Type)
	}
}

func validateSource(src PriceSource) error {
	if !knownSourceNames[src.SourceName] {
		return fmt.Errorf("%w: %q", ErrUnknownSourceName, src.SourceName)
	}
	if src.SourceID == "" {
		return fmt.Errorf("source %s has empty source_id", src.SourceName)
	}
	return nil
}
