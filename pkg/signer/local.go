package signer

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Local signs with a private key loaded from disk.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocal loads a hex-encoded private key from the given path.
func NewLocal(keyPath string) (*Local, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	hexKey := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	return &Local{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the address derived from the loaded key.
func (l *Local) Address() common.Address {
	return l.address
}

// Sign signs the digest with the local key. The returned v is the recovery id
// plus 27.
func (l *Local) Sign(digest common.Hash) (Signature, error) {
	sig, err := crypto.Sign(digest.Bytes(), l.key)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}
