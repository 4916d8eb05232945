// Package signer produces ECDSA signatures over venue typed-data digests.
//
// Three interchangeable strategies: a local private key, an external
// key-management signing service, and local co-signing for a multisig
// account. All produce the same {r, s, v} wire format.
package signer

import (
	"github.com/ethereum/go-ethereum/common"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
)

// Signature is an ECDSA signature in the venue wire format. R and S are
// 0x-prefixed 32-byte hex strings, V is 27 or 28.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// Signer signs a 32-byte digest.
type Signer interface {
	Sign(digest common.Hash) (Signature, error)
	Address() common.Address
}

// FromConfig selects the signing strategy from configuration. Enabling both
// KMS and multisig is a misconfiguration and fails fast; construction errors
// (unreadable key file, unreachable KMS) are fatal to startup.
func FromConfig(cfg *config.Config, logger *logging.Logger) (Signer, error) {
	if cfg.KMS.Enabled && cfg.Multisig.Enabled {
		return nil, config.ErrKMSAndMultisig
	}

	switch {
	case cfg.KMS.Enabled:
		return NewKMS(cfg.KMS, logger)
	case cfg.Multisig.Enabled:
		return NewMultisig(cfg.Hyperliquid.OraclePusherKeyPath, cfg.Multisig.Address)
	default:
		return NewLocal(cfg.Hyperliquid.OraclePusherKeyPath)
	}
}
