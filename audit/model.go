// audit/model.go
package audit

import (
	"time"
)

type DecisionEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	PrincipalID      string    `json:"principal_id"`
	Action           string    `json:"action"`
	ResourceID       string    `json:"resource_id"`
	Outcome          string    `json:"outcome"`
	Reason           string    `json:"reason"`
	MatchedPolicyIDs []string  `json:"matched_policy_ids"`
	StoreID          string    `json:"store_id"`
	StoreVersion     string    `json:"store_version"`
	EvaluationTimeMS float64   `json:"evaluation_time_ms"`
}
