package signer

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// Typed-data constants for the venue's phantom-agent signing scheme. The
// domain is fixed regardless of network; mainnet and testnet differ only in
// the agent source string.
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	agentTypeHash     = crypto.Keccak256Hash([]byte("Agent(string source,bytes32 connectionId)"))
	domainNameHash    = crypto.Keccak256Hash([]byte("Exchange"))
	domainVersionHash = crypto.Keccak256Hash([]byte("1"))
	domainChainID     = big.NewInt(1337)
)

// ActionHash computes the venue connection id for an action: the keccak of
// the msgpack-encoded action, the nonce as 8 big-endian bytes, and a 0x00
// terminator (no vault address).
func ActionHash(action interface{}, nonce uint64) (common.Hash, error) {
	data, err := msgpack.Marshal(action)
	if err != nil {
		return common.Hash{}, err
	}

	buf := make([]byte, 0, len(data)+9)
	buf = append(buf, data...)
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	buf = append(buf, nonceBytes[:]...)
	buf = append(buf, 0x00)

	return crypto.Keccak256Hash(buf), nil
}

// SigningDigest wraps an action hash in the EIP-712 phantom-agent envelope.
// The agent source is "a" on mainnet and "b" on testnet.
func SigningDigest(actionHash common.Hash, isMainnet bool) common.Hash {
	domainHash := crypto.Keccak256Hash(
		eip712DomainTypeHash.Bytes(),
		domainNameHash.Bytes(),
		domainVersionHash.Bytes(),
		common.LeftPadBytes(domainChainID.Bytes(), 32),
		common.LeftPadBytes(common.Address{}.Bytes(), 32),
	)

	source := "b"
	if isMainnet {
		source = "a"
	}
	structHash := crypto.Keccak256Hash(
		agentTypeHash.Bytes(),
		crypto.Keccak256([]byte(source)),
		actionHash.Bytes(),
	)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainHash.Bytes(), structHash.Bytes())
}
