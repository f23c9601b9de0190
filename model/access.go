// model/access.go
package model

// Principal is the authenticated identity making a request, resolved from
// validated token claims. It exists only for the duration of one evaluation.
type Principal struct {
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// AccessRequest is one authorization question: may Principal perform
// Action on Resource given Context.
type AccessRequest struct {
	Principal Principal              `json:"principal"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Context   map[string]interface{} `json:"context"`
}

type Outcome string

const (
	OutcomeAllow Outcome = "ALLOW"
	OutcomeDeny  Outcome = "DENY"
)

// Reason codes surfaced to callers. Authorization failures never raise a
// fault; they surface as a DENY decision carrying one of these codes.
const (
	ReasonPermitMatched     = "PERMIT_MATCHED"
	ReasonExplicitForbid    = "EXPLICIT_FORBID"
	ReasonNoMatchingPolicy  = "NO_MATCHING_POLICY"
	ReasonAttributeMissing  = "ATTRIBUTE_MISSING"
	ReasonTokenMalformed    = "TOKEN_MALFORMED"
	ReasonSignatureInvalid  = "SIGNATURE_INVALID"
	ReasonTokenExpired      = "TOKEN_EXPIRED"
	ReasonAudienceMismatch  = "AUDIENCE_MISMATCH"
	ReasonIssuerMismatch    = "ISSUER_MISMATCH"
	ReasonPrincipalMismatch = "PRINCIPAL_MISMATCH"
	ReasonStoreNotFound     = "STORE_NOT_FOUND"
	ReasonKeyFetchTimeout   = "KEY_FETCH_TIMEOUT"
	ReasonInternalError     = "INTERNAL_ERROR"
)

// Decision is the outcome of one evaluation. Produced once per request and
// never mutated afterwards.
type Decision struct {
	Outcome          Outcome  `json:"decision"`
	Reason           string   `json:"reason"`
	MatchedPolicyIDs []string `json:"matched_policies"`
	EvaluationTimeMS float64  `json:"evaluation_time_ms"`
	StoreVersion     string   `json:"store_version,omitempty"`
}
