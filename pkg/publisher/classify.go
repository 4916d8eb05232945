package publisher

import "strings"

// Reason categorizes venue error responses for metrics. The empty reason
// means the response carried no error text.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonRateLimit             Reason = "rate_limit"
	ReasonUserLimit             Reason = "user_limit"
	ReasonInternalError         Reason = "internal_error"
	ReasonInvalidNonce          Reason = "invalid_nonce"
	ReasonInvalidDeployer       Reason = "invalid_deployer_account"
	ReasonAccountDoesNotExist   Reason = "account_does_not_exist"
	ReasonMissingExternalPerpPx Reason = "missing_external_perp_pxs"
	ReasonInvalidDex            Reason = "invalid_dex"
	ReasonUnknown               Reason = "unknown"
)

// Substring match against the venue's free-text error, first match wins.
var reasonTable = []struct {
	substr string
	reason Reason
}{
	{"too often", ReasonRateLimit},
	{"cumulative requests", ReasonUserLimit},
	{"Invalid nonce", ReasonInvalidNonce},
	{"externalPerpPxs missing", ReasonMissingExternalPerpPx},
	{"Invalid perp deployer", ReasonInvalidDeployer},
	{"does not exist", ReasonAccountDoesNotExist},
	{"Invalid perp DEX", ReasonInvalidDex},
}

// classifyReason maps the response field of an err-status reply to a known
// failure mode. An absent or empty field yields no reason; a non-string field
// is unknown.
func classifyReason(response interface{}) Reason {
	if response == nil {
		return ReasonNone
	}
	text, ok := response.(string)
	if !ok {
		return ReasonUnknown
	}
	if text == "" {
		return ReasonNone
	}
	for _, entry := range reasonTable {
		if strings.Contains(text, entry.substr) {
			return entry.reason
		}
	}
	return ReasonUnknown
}
