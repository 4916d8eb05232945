package config

import "errors"

var (
	// ErrUnknownSourceType indicates a fallback-chain entry with an unrecognized source_type tag.
	ErrUnknownSourceType = errors.New("unknown source_type")
	// ErrUnknownSourceName indicates a price source referencing a source that does not exist.
	ErrUnknownSourceName = errors.New("unknown source_name")
	// ErrKMSAndMultisig indicates that KMS and multisig signing are both enabled.
	ErrKMSAndMultisig = errors.New("KMS and multisig signing cannot both be enabled")
	// ErrMissingMultisigAddress indicates multisig is enabled without an address.
	ErrMissingMultisigAddress = errors.New("multisig enabled but missing multisig address")
	// ErrMissingKeyPath indicates no local key path while KMS is disabled.
	ErrMissingKeyPath = errors.New("oracle_pusher_key_path is required when KMS is not enabled")
	// ErrMissingKMSURL indicates KMS is enabled without a service URL.
	ErrMissingKMSURL = errors.New("kms url is required when KMS is enabled")
	// ErrMissingMarketName indicates no venue dex identifier is configured.
	ErrMissingMarketName = errors.New("market_name is required")
	// ErrNoPushURLs indicates publishing is enabled without push endpoints.
	ErrNoPushURLs = errors.New("at least one push url is required when publishing is enabled")
	// ErrMarkOnlySource indicates a mark-only chain entry used in an oracle or external chain.
	ErrMarkOnlySource = errors.New("source type is only valid in mark chains")
)
