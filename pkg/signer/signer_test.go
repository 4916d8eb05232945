package signer

import (
	"crypto/ecdsa"
	"encoding/asn1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/oracle-relayer/pkg/config"
	"tc.com/oracle-relayer/pkg/logging"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func writeKeyFile(t *testing.T, keyHex string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte(keyHex+"\n"), 0o600))
	return path
}

func TestLocalSignRecoverRoundtrip(t *testing.T) {
	local, err := NewLocal(writeKeyFile(t, testKeyHex))
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	sig, err := local.Sign(digest)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)

	raw := make([]byte, 65)
	copy(raw[0:32], hexutil.MustDecode(sig.R))
	copy(raw[32:64], hexutil.MustDecode(sig.S))
	raw[64] = sig.V - 27

	pubkey, err := crypto.SigToPub(digest.Bytes(), raw)
	require.NoError(t, err)
	assert.Equal(t, local.Address(), crypto.PubkeyToAddress(*pubkey))
}

func TestNewLocalRejectsBadKey(t *testing.T) {
	_, err := NewLocal(writeKeyFile(t, "not-a-key"))
	assert.Error(t, err)

	_, err = NewLocal(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestActionHash(t *testing.T) {
	action := map[string]interface{}{"type": "perpDeploy"}

	h1, err := ActionHash(action, 1700000000000)
	require.NoError(t, err)
	h2, err := ActionHash(action, 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := ActionHash(action, 1700000000001)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestSigningDigestNetworks(t *testing.T) {
	actionHash := crypto.Keccak256Hash([]byte("action"))

	mainnet := SigningDigest(actionHash, true)
	testnet := SigningDigest(actionHash, false)
	assert.NotEqual(t, mainnet, testnet)
	assert.Equal(t, mainnet, SigningDigest(actionHash, true))
}

func encodeDER(t *testing.T, r, s *big.Int) []byte {
	t.Helper()
	der, err := asn1.Marshal(derSignature{R: r, S: s})
	require.NoError(t, err)
	return der
}

func TestParseDERSignature(t *testing.T) {
	r := big.NewInt(12345)
	s := big.NewInt(67890)

	gotR, gotS, err := parseDERSignature(encodeDER(t, r, s))
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(gotR))
	assert.Zero(t, s.Cmp(gotS))

	_, _, err = parseDERSignature([]byte{0x30, 0x01})
	assert.ErrorIs(t, err, ErrInvalidDERSignature)

	_, _, err = parseDERSignature(append(encodeDER(t, r, s), 0xff))
	assert.ErrorIs(t, err, ErrInvalidDERSignature)
}

func TestNormalizeS(t *testing.T) {
	n := crypto.S256().Params().N
	low := big.NewInt(42)
	high := new(big.Int).Sub(n, low)

	assert.Zero(t, low.Cmp(normalizeS(low)))
	assert.Zero(t, low.Cmp(normalizeS(high)))
}

// kmsServer is a fake signing service backed by a real key. When highS is set
// it returns the non-canonical signature form.
func kmsServer(t *testing.T, key *ecdsa.PrivateKey, highS bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/keys/test/public", func(w http.ResponseWriter, r *http.Request) {
		pub := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey))
		json.NewEncoder(w).Encode(publicKeyResponse{PublicKey: pub})
	})

	mux.HandleFunc("/v1/keys/test/sign", func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		digest := hexutil.MustDecode(req.Digest)
		raw, err := crypto.Sign(digest, key)
		require.NoError(t, err)

		sigR := new(big.Int).SetBytes(raw[0:32])
		sigS := new(big.Int).SetBytes(raw[32:64])
		if highS {
			sigS.Sub(crypto.S256().Params().N, sigS)
		}

		der := encodeDER(t, sigR, sigS)
		json.NewEncoder(w).Encode(signResponse{Signature: base64.StdEncoding.EncodeToString(der)})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newKMSSigner(t *testing.T, server *httptest.Server) *KMS {
	t.Helper()
	kms, err := NewKMS(config.KMSConfig{
		Enabled: true,
		URL:     server.URL,
		KeyID:   "test",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return kms
}

func verifySignature(t *testing.T, digest common.Hash, sig Signature, want common.Address) {
	t.Helper()
	raw := make([]byte, 65)
	copy(raw[0:32], hexutil.MustDecode(sig.R))
	copy(raw[32:64], hexutil.MustDecode(sig.S))
	raw[64] = sig.V - 27

	pubkey, err := crypto.SigToPub(digest.Bytes(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, crypto.PubkeyToAddress(*pubkey))
}

func TestKMSSign(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	kms := newKMSSigner(t, kmsServer(t, key, false))
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), kms.Address())

	digest := crypto.Keccak256Hash([]byte("payload"))
	sig, err := kms.Sign(digest)
	require.NoError(t, err)
	verifySignature(t, digest, sig, kms.Address())
}

func TestKMSSignNormalizesHighS(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	kms := newKMSSigner(t, kmsServer(t, key, true))

	digest := crypto.Keccak256Hash([]byte("payload"))
	sig, err := kms.Sign(digest)
	require.NoError(t, err)
	verifySignature(t, digest, sig, kms.Address())

	s := new(big.Int).SetBytes(hexutil.MustDecode(sig.S))
	half := new(big.Int).Rsh(crypto.S256().Params().N, 1)
	assert.True(t, s.Cmp(half) <= 0)
}

func TestKMSRecoveryIDSelectsCorrectV(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	kms := newKMSSigner(t, kmsServer(t, key, false))

	// Search for digests whose signature carries each recovery id, and check
	// the trial recovery picks the matching v rather than the first that
	// parses.
	seen := map[uint8]bool{}
	for i := uint64(0); len(seen) < 2 && i < 64; i++ {
		var seed [8]byte
		binary.BigEndian.PutUint64(seed[:], i)
		digest := crypto.Keccak256Hash(seed[:])

		raw, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		wantV := raw[64] + 27

		sig, err := kms.Sign(digest)
		require.NoError(t, err)
		assert.Equal(t, wantV, sig.V)
		verifySignature(t, digest, sig, kms.Address())
		seen[sig.V] = true
	}
	assert.Len(t, seen, 2, "expected to exercise both recovery ids")
}

func TestKMSSignWrongKeyFailsRecovery(t *testing.T) {
	signingKey, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	reportedKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	// Pubkey endpoint reports a different key than the one signing.
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/keys/test/public", func(w http.ResponseWriter, r *http.Request) {
		pub := hex.EncodeToString(crypto.FromECDSAPub(&reportedKey.PublicKey))
		json.NewEncoder(w).Encode(publicKeyResponse{PublicKey: pub})
	})
	mux.HandleFunc("/v1/keys/test/sign", func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := crypto.Sign(hexutil.MustDecode(req.Digest), signingKey)
		require.NoError(t, err)
		der := encodeDER(t, new(big.Int).SetBytes(raw[0:32]), new(big.Int).SetBytes(raw[32:64]))
		json.NewEncoder(w).Encode(signResponse{Signature: base64.StdEncoding.EncodeToString(der)})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	kms, err := NewKMS(config.KMSConfig{URL: server.URL, KeyID: "test"}, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = kms.Sign(crypto.Keccak256Hash([]byte("payload")))
	assert.ErrorIs(t, err, ErrRecoveryID)
}

func TestNewKMSPublicKeyFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewKMS(config.KMSConfig{URL: server.URL, KeyID: "test"}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestMultisigAddresses(t *testing.T) {
	account := "0x00000000000000000000000000000000000000aa"
	m, err := NewMultisig(writeKeyFile(t, testKeyHex), account)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(account), m.Address())
	assert.NotEqual(t, m.Address(), m.SignerAddress())

	_, err = NewMultisig(writeKeyFile(t, testKeyHex), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidMultisigAddress)
}

func TestFromConfigRejectsKMSWithMultisig(t *testing.T) {
	cfg := &config.Config{
		KMS:      config.KMSConfig{Enabled: true},
		Multisig: config.MultisigConfig{Enabled: true},
	}
	_, err := FromConfig(cfg, logging.NewNopLogger())
	assert.ErrorIs(t, err, config.ErrKMSAndMultisig)
}
