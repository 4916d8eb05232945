package signer

import "errors"

var (
	// ErrRecoveryID means neither recovery id candidate reproduced the known
	// public key for a KMS signature.
	ErrRecoveryID = errors.New("could not determine signature recovery id")

	// ErrInvalidDERSignature means the KMS returned a malformed DER signature.
	ErrInvalidDERSignature = errors.New("invalid DER signature")

	// ErrInvalidMultisigAddress means the configured multisig account address
	// is not a valid hex address.
	ErrInvalidMultisigAddress = errors.New("invalid multisig account address")
)
