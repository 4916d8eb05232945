package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Multisig signs locally as one co-signer for a shared multisig account. The
// publisher submits multisig-signed actions to the dedicated multisig
// endpoint rather than the plain push endpoint.
type Multisig struct {
	local   *Local
	account common.Address
}

// NewMultisig loads the co-signer key and validates the multisig account
// address.
func NewMultisig(keyPath, account string) (*Multisig, error) {
	local, err := NewLocal(keyPath)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMultisigAddress, account)
	}

	return &Multisig{local: local, account: common.HexToAddress(account)}, nil
}

// Address returns the multisig account address the update is attributed to.
func (m *Multisig) Address() common.Address {
	return m.account
}

// SignerAddress returns the co-signer's own address.
func (m *Multisig) SignerAddress() common.Address {
	return m.local.Address()
}

// Sign signs the digest with the co-signer key.
func (m *Multisig) Sign(digest common.Hash) (Signature, error) {
	return m.local.Sign(digest)
}
