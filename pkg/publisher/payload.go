package publisher

import (
	"sort"

	"tc.com/oracle-relayer/pkg/signer"
)

// Wire types for the setOracle action. Field declaration order is part of the
// signed payload and must not change.

type setOracleAction struct {
	Type      string           `json:"type" msgpack:"type"`
	SetOracle setOracleDetails `json:"setOracle" msgpack:"setOracle"`
}

type setOracleDetails struct {
	Dex             string        `json:"dex" msgpack:"dex"`
	OraclePxs       [][2]string   `json:"oraclePxs" msgpack:"oraclePxs"`
	MarkPxs         [][][2]string `json:"markPxs" msgpack:"markPxs"`
	ExternalPerpPxs [][2]string   `json:"externalPerpPxs" msgpack:"externalPerpPxs"`
}

// pushRequest is the plain push endpoint body.
type pushRequest struct {
	Action       setOracleAction  `json:"action"`
	Nonce        uint64           `json:"nonce"`
	Signature    signer.Signature `json:"signature"`
	VaultAddress *string          `json:"vaultAddress"`
}

// multisigRequest is the multisig submission endpoint body. Signatures from
// the co-signers are collected by the venue against the shared account.
type multisigRequest struct {
	Action       setOracleAction    `json:"action"`
	Nonce        uint64             `json:"nonce"`
	Signatures   []signer.Signature `json:"signatures"`
	MultiSigUser string             `json:"multiSigUser"`
	OuterSigner  string             `json:"outerSigner"`
}

// pushResponse is the venue reply. Response is free-form: a string on errors,
// a data object on some ok replies.
type pushResponse struct {
	Status   string      `json:"status"`
	Response interface{} `json:"response"`
}

// buildAction assembles the setOracle action with all map entries converted
// to lexicographically sorted pairs for deterministic signing.
func buildAction(dex string, oracle map[string]string, markRounds []map[string]string, external map[string]string) setOracleAction {
	marks := make([][][2]string, 0, len(markRounds))
	for _, round := range markRounds {
		marks = append(marks, sortedItems(round))
	}

	return setOracleAction{
		Type: "perpDeploy",
		SetOracle: setOracleDetails{
			Dex:             dex,
			OraclePxs:       sortedItems(oracle),
			MarkPxs:         marks,
			ExternalPerpPxs: sortedItems(external),
		},
	}
}

func sortedItems(m map[string]string) [][2]string {
	items := make([][2]string, 0, len(m))
	for k, v := range m {
		items = append(items, [2]string{k, v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i][0] < items[j][0] })
	return items
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
