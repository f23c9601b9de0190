// engine/evaluator.go
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	verdict_errors "github.com/verdictd/verdict/errors"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
)

// Evaluator is the decision engine. It is pure over (request, snapshot):
// audit emission is the caller's concern.
type Evaluator struct {
	cache *DecisionCache
}

func NewEvaluator(cacheSize int) *Evaluator {
	return &Evaluator{
		cache: NewDecisionCache(cacheSize),
	}
}

// Evaluate runs the request against every policy in the snapshot and
// combines the matched effects with explicit-deny-overrides semantics.
// A condition that references an attribute absent from the request denies
// the whole evaluation with ATTRIBUTE_MISSING: authorization fails closed,
// it never raises a fault.
func (e *Evaluator) Evaluate(ctx context.Context, request *model.AccessRequest, snapshot *model.PolicySnapshot) *model.Decision {
	start := time.Now()

	cacheKey := e.generateCacheKey(request, snapshot.Version)
	if cached := e.cache.Get(cacheKey); cached != nil {
		logger.Debug("Decision cache hit",
			zap.String("principal", request.Principal.ID),
			zap.String("resource", request.Resource))
		return cached
	}

	attributesJSON, err := marshalAttributeSpace(request)
	if err != nil {
		logger.Error("Failed to marshal request attributes", zap.Error(err))
		return e.finish(cacheKey, request, snapshot, start, model.OutcomeDeny, model.ReasonInternalError, nil)
	}

	var permits, forbids []string

	for _, policy := range snapshot.Policies {
		if !matchTarget(policy.Principals, request.Principal.ID) ||
			!matchTarget(policy.Actions, request.Action) ||
			!matchTarget(policy.Resources, request.Resource) {
			continue
		}

		matched, err := evaluateConditions(policy.Conditions, attributesJSON)
		if err != nil {
			reason := model.ReasonAttributeMissing
			if errors.Is(err, verdict_errors.ErrUnknownOperator) {
				reason = model.ReasonInternalError
			}

			logger.Warn("Policy condition could not be evaluated",
				zap.String("policyID", policy.ID),
				zap.String("principal", request.Principal.ID),
				zap.Error(err))
			return e.finish(cacheKey, request, snapshot, start, model.OutcomeDeny, reason, nil)
		}

		if !matched {
			continue
		}

		if policy.Effect == model.EffectForbid {
			forbids = append(forbids, policy.ID)
		} else {
			permits = append(permits, policy.ID)
		}
	}

	switch {
	case len(forbids) > 0:
		return e.finish(cacheKey, request, snapshot, start, model.OutcomeDeny, model.ReasonExplicitForbid, append(forbids, permits...))
	case len(permits) > 0:
		return e.finish(cacheKey, request, snapshot, start, model.OutcomeAllow, model.ReasonPermitMatched, permits)
	default:
		return e.finish(cacheKey, request, snapshot, start, model.OutcomeDeny, model.ReasonNoMatchingPolicy, nil)
	}
}

func (e *Evaluator) finish(cacheKey string, request *model.AccessRequest, snapshot *model.PolicySnapshot, start time.Time, outcome model.Outcome, reason string, matched []string) *model.Decision {
	if matched == nil {
		matched = []string{}
	}

	decision := &model.Decision{
		Outcome:          outcome,
		Reason:           reason,
		MatchedPolicyIDs: matched,
		EvaluationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		StoreVersion:     snapshot.Version,
	}

	e.cache.Set(cacheKey, decision)

	return decision
}

// FlushCache drops every cached decision. Called when a policy store
// snapshot is replaced.
func (e *Evaluator) FlushCache() {
	e.cache.Flush()
}

// matchTarget matches a policy target list against a request value. An
// empty list or "*" matches anything.
func matchTarget(targets []string, value string) bool {
	if len(targets) == 0 {
		return true
	}

	for _, target := range targets {
		if target == "*" || target == value {
			return true
		}
	}

	return false
}

// marshalAttributeSpace flattens the request into one JSON document so
// attribute paths like "principal.account_id" resolve uniformly.
func marshalAttributeSpace(request *model.AccessRequest) ([]byte, error) {
	principal := make(map[string]interface{}, len(request.Principal.Attributes)+1)
	for k, v := range request.Principal.Attributes {
		principal[k] = v
	}
	principal["id"] = request.Principal.ID

	space := map[string]interface{}{
		"principal": principal,
		"resource":  map[string]interface{}{"id": request.Resource},
		"context":   request.Context,
	}

	return json.Marshal(space)
}

func evaluateConditions(conditions []model.Condition, attributesJSON []byte) (bool, error) {
	for _, condition := range conditions {
		matched, err := evaluateCondition(condition, attributesJSON)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

func evaluateCondition(condition model.Condition, attributesJSON []byte) (bool, error) {
	left := gjson.GetBytes(attributesJSON, condition.Attribute)
	if !left.Exists() {
		return false, fmt.Errorf("attribute %q: %w", condition.Attribute, verdict_errors.ErrAttributeMissing)
	}

	right := condition.Value
	if path, ok := model.ReferencePath(condition.Value); ok {
		resolved := gjson.GetBytes(attributesJSON, path)
		if !resolved.Exists() {
			return false, fmt.Errorf("referenced attribute %q: %w", path, verdict_errors.ErrAttributeMissing)
		}
		right = resolved.Value()
	}

	switch condition.Operator {
	case model.OpEqual:
		return valuesEqual(left.Value(), right), nil
	case model.OpNotEqual:
		return !valuesEqual(left.Value(), right), nil
	case model.OpIn:
		return valueIn(left.Value(), right), nil
	case model.OpGreaterThan, model.OpGreaterOrEqual, model.OpLessThan, model.OpLessOrEqual:
		return compareNumeric(condition.Operator, left.Value(), right), nil
	case model.OpContains:
		return valueContains(left, right), nil
	default:
		return false, fmt.Errorf("operator %q: %w", condition.Operator, verdict_errors.ErrUnknownOperator)
	}
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
		return false
	}

	return a == b
}

func valueIn(value, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}

	for _, item := range items {
		if valuesEqual(value, item) {
			return true
		}
	}

	return false
}

func valueContains(left gjson.Result, right interface{}) bool {
	if left.IsArray() {
		for _, item := range left.Array() {
			if valuesEqual(item.Value(), right) {
				return true
			}
		}
		return false
	}

	if rightStr, ok := right.(string); ok && left.Type == gjson.String {
		return strings.Contains(left.String(), rightStr)
	}

	return false
}

func compareNumeric(op model.Operator, a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if !aok || !bok {
		return false
	}

	switch op {
	case model.OpGreaterThan:
		return af > bf
	case model.OpGreaterOrEqual:
		return af >= bf
	case model.OpLessThan:
		return af < bf
	case model.OpLessOrEqual:
		return af <= bf
	}

	return false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// generateCacheKey hashes the full request identity as one JSON document.
// Marshaling delimits every field, so values containing separator
// characters cannot collide into another request's key.
func (e *Evaluator) generateCacheKey(request *model.AccessRequest, storeVersion string) string {
	identity, _ := json.Marshal(map[string]interface{}{
		"store_version": storeVersion,
		"principal":     request.Principal.ID,
		"attributes":    request.Principal.Attributes,
		"action":        request.Action,
		"resource":      request.Resource,
		"context":       request.Context,
	})
	sum := sha256.Sum256(identity)

	return hex.EncodeToString(sum[:])
}
