package signer

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
)

// KMS signs through an external key-management service over HTTP. The service
// returns DER-encoded signatures without a recovery id, so the public key is
// fetched once at construction and each signature's recovery id is found by
// trial recovery against it.
type KMS struct {
	url    string
	keyID  string
	client *http.Client
	logger *logging.Logger

	pubkey  *ecdsa.PublicKey
	address common.Address
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type signRequest struct {
	Digest string `json:"digest"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// NewKMS creates a KMS signer and fetches the public key for the configured
// key id. A fetch failure is returned to the caller and must abort startup.
func NewKMS(cfg config.KMSConfig, logger *logging.Logger) (*KMS, error) {
	k := &KMS{
		url:    strings.TrimRight(cfg.URL, "/"),
		keyID:  cfg.KeyID,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "kms_signer"),
	}

	pubkey, err := k.fetchPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load KMS public key: %w", err)
	}
	k.pubkey = pubkey
	k.address = crypto.PubkeyToAddress(*pubkey)
	k.logger.Info("loaded KMS public key", "key_id", cfg.KeyID, "address", k.address.Hex())

	return k, nil
}

// Address returns the address derived from the KMS public key.
func (k *KMS) Address() common.Address {
	return k.address
}

func (k *KMS) fetchPublicKey() (*ecdsa.PublicKey, error) {
	resp, err := k.client.Get(fmt.Sprintf("%s/v1/keys/%s/public", k.url, k.keyID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body publicKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(body.PublicKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	// Accept the 64-byte uncompressed form without the 0x04 prefix.
	if len(raw) == 64 {
		raw = append([]byte{0x04}, raw...)
	}

	return crypto.UnmarshalPubkey(raw)
}

// Sign requests a signature from the KMS and converts the DER result to the
// {r, s, v} wire format: low-s normalization followed by recovery-id trial.
// A signature that recovers to neither candidate is a per-call error; the
// caller skips the tick and retries on the next one.
func (k *KMS) Sign(digest common.Hash) (Signature, error) {
	der, err := k.requestSignature(digest)
	if err != nil {
		return Signature{}, err
	}

	r, s, err := parseDERSignature(der)
	if err != nil {
		return Signature{}, err
	}
	s = normalizeS(s)

	sig := make([]byte, 65)
	copy(sig[0:32], common.LeftPadBytes(r.Bytes(), 32))
	copy(sig[32:64], common.LeftPadBytes(s.Bytes(), 32))

	expected := crypto.FromECDSAPub(k.pubkey)
	for v := byte(0); v < 2; v++ {
		sig[64] = v
		recovered, err := crypto.Ecrecover(digest.Bytes(), sig)
		if err != nil {
			continue
		}
		if bytes.Equal(recovered, expected) {
			return Signature{
				R: hexutil.Encode(sig[0:32]),
				S: hexutil.Encode(sig[32:64]),
				V: v + 27,
			}, nil
		}
	}

	return Signature{}, ErrRecoveryID
}

func (k *KMS) requestSignature(digest common.Hash) ([]byte, error) {
	payload, err := json.Marshal(signRequest{Digest: hexutil.Encode(digest.Bytes())})
	if err != nil {
		return nil, err
	}

	resp, err := k.client.Post(
		fmt.Sprintf("%s/v1/keys/%s/sign", k.url, k.keyID),
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body signResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	der, err := base64.StdEncoding.DecodeString(body.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid base64: %w", err)
	}
	return der, nil
}

type derSignature struct {
	R, S *big.Int
}

// parseDERSignature decodes an ASN.1 DER ECDSA signature into its r and s
// components. Trailing bytes and non-positive components are rejected.
func parseDERSignature(der []byte) (*big.Int, *big.Int, error) {
	var sig derSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDERSignature, err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%w: trailing bytes", ErrInvalidDERSignature)
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive component", ErrInvalidDERSignature)
	}
	return sig.R, sig.S, nil
}

// normalizeS maps s to the lower half of the curve order. KMS backends may
// return either form; the venue only accepts low-s signatures.
func normalizeS(s *big.Int) *big.Int {
	n := crypto.S256().Params().N
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return s
}
