// engine/evaluator_test.go
package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictd/verdict/engine"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	defer logger.Sync()
	m.Run()
}

func snapshotWith(version string, policies ...model.Policy) *model.PolicySnapshot {
	return &model.PolicySnapshot{
		StoreID:  "default",
		Version:  version,
		Policies: policies,
		Schema: model.Schema{
			EntityTypes: map[string]model.EntityType{
				"principal": {Attributes: map[string]string{
					"department":   "string",
					"access_level": "string",
					"account_id":   "string",
					"clearance":    "number",
				}},
				"resource": {Attributes: map[string]string{"id": "string"}},
				"context":  {Attributes: map[string]string{"account_id": "string"}},
			},
		},
	}
}

func accessRequest(attributes map[string]interface{}, requestContext map[string]interface{}) *model.AccessRequest {
	return &model.AccessRequest{
		Principal: model.Principal{ID: "alice", Attributes: attributes},
		Action:    "read",
		Resource:  "doc-1",
		Context:   requestContext,
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()

	permitEngineering := model.Policy{
		ID:         "permit-engineering-read",
		Effect:     model.EffectPermit,
		Principals: []string{"*"},
		Actions:    []string{"read"},
		Resources:  []string{"doc-1"},
		Conditions: []model.Condition{
			{Attribute: "principal.department", Operator: model.OpEqual, Value: "engineering"},
		},
	}

	forbidContractors := model.Policy{
		ID:         "forbid-contractors",
		Effect:     model.EffectForbid,
		Principals: []string{"*"},
		Actions:    []string{"read"},
		Resources:  []string{"doc-1"},
		Conditions: []model.Condition{
			{Attribute: "principal.access_level", Operator: model.OpEqual, Value: "contractor"},
		},
	}

	t.Run("PermitMatch_Allows", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", permitEngineering)
		request := accessRequest(map[string]interface{}{"department": "engineering"}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeAllow, decision.Outcome)
		assert.Equal(t, model.ReasonPermitMatched, decision.Reason)
		assert.Equal(t, []string{"permit-engineering-read"}, decision.MatchedPolicyIDs)
		assert.Equal(t, "v1", decision.StoreVersion)
	})

	t.Run("NoMatchingPolicy_Denies", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", permitEngineering)
		request := accessRequest(map[string]interface{}{"department": "finance"}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonNoMatchingPolicy, decision.Reason)
		assert.Empty(t, decision.MatchedPolicyIDs)
	})

	t.Run("ExplicitForbid_OverridesPermit", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", permitEngineering, forbidContractors)
		request := accessRequest(map[string]interface{}{
			"department":   "engineering",
			"access_level": "contractor",
		}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonExplicitForbid, decision.Reason)
		assert.Contains(t, decision.MatchedPolicyIDs, "forbid-contractors")
		assert.Contains(t, decision.MatchedPolicyIDs, "permit-engineering-read")
	})

	t.Run("MissingAttribute_FailsClosed", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", permitEngineering)
		request := accessRequest(map[string]interface{}{"access_level": "standard"}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonAttributeMissing, decision.Reason)
		assert.Empty(t, decision.MatchedPolicyIDs)
	})

	t.Run("AccountBinding_ByContextReference", func(t *testing.T) {
		accountPolicy := model.Policy{
			ID:      "permit-own-account",
			Effect:  model.EffectPermit,
			Actions: []string{"read"},
			Conditions: []model.Condition{
				{Attribute: "principal.account_id", Operator: model.OpEqual, Value: "${context.account_id}"},
			},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", accountPolicy)

		ownAccount := accessRequest(
			map[string]interface{}{"account_id": "acct-42"},
			map[string]interface{}{"account_id": "acct-42"},
		)
		decision := evaluator.Evaluate(ctx, ownAccount, snapshot)
		assert.Equal(t, model.OutcomeAllow, decision.Outcome)

		otherAccount := accessRequest(
			map[string]interface{}{"account_id": "acct-42"},
			map[string]interface{}{"account_id": "acct-99"},
		)
		decision = evaluator.Evaluate(ctx, otherAccount, snapshot)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonNoMatchingPolicy, decision.Reason)
	})

	t.Run("MissingReferencedAttribute_FailsClosed", func(t *testing.T) {
		accountPolicy := model.Policy{
			ID:     "permit-own-account",
			Effect: model.EffectPermit,
			Conditions: []model.Condition{
				{Attribute: "principal.account_id", Operator: model.OpEqual, Value: "${context.account_id}"},
			},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", accountPolicy)
		request := accessRequest(map[string]interface{}{"account_id": "acct-42"}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonAttributeMissing, decision.Reason)
	})

	t.Run("EmptyTargets_MatchAnything", func(t *testing.T) {
		openPolicy := model.Policy{
			ID:     "permit-anything",
			Effect: model.EffectPermit,
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", openPolicy)
		request := accessRequest(nil, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeAllow, decision.Outcome)
	})

	t.Run("TargetMismatch_SkipsPolicy", func(t *testing.T) {
		scopedPolicy := model.Policy{
			ID:         "permit-bob-only",
			Effect:     model.EffectPermit,
			Principals: []string{"bob"},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", scopedPolicy)
		request := accessRequest(nil, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonNoMatchingPolicy, decision.Reason)
	})

	t.Run("InOperator", func(t *testing.T) {
		inPolicy := model.Policy{
			ID:     "permit-departments",
			Effect: model.EffectPermit,
			Conditions: []model.Condition{
				{Attribute: "principal.department", Operator: model.OpIn, Value: []interface{}{"engineering", "security"}},
			},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", inPolicy)

		decision := evaluator.Evaluate(ctx, accessRequest(map[string]interface{}{"department": "security"}, nil), snapshot)
		assert.Equal(t, model.OutcomeAllow, decision.Outcome)

		decision = evaluator.Evaluate(ctx, accessRequest(map[string]interface{}{"department": "sales"}, nil), snapshot)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
	})

	t.Run("NumericComparison", func(t *testing.T) {
		clearancePolicy := model.Policy{
			ID:     "permit-high-clearance",
			Effect: model.EffectPermit,
			Conditions: []model.Condition{
				{Attribute: "principal.clearance", Operator: model.OpGreaterOrEqual, Value: 3},
			},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", clearancePolicy)

		decision := evaluator.Evaluate(ctx, accessRequest(map[string]interface{}{"clearance": 4}, nil), snapshot)
		assert.Equal(t, model.OutcomeAllow, decision.Outcome)

		decision = evaluator.Evaluate(ctx, accessRequest(map[string]interface{}{"clearance": 2}, nil), snapshot)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
	})

	t.Run("UnknownOperator_FailsClosed", func(t *testing.T) {
		badPolicy := model.Policy{
			ID:     "bad-operator",
			Effect: model.EffectPermit,
			Conditions: []model.Condition{
				{Attribute: "principal.department", Operator: "matches", Value: "eng.*"},
			},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", badPolicy)
		request := accessRequest(map[string]interface{}{"department": "engineering"}, nil)

		decision := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonInternalError, decision.Reason)
	})
}

func TestEvaluator_DecisionCache(t *testing.T) {
	ctx := context.Background()

	policy := model.Policy{
		ID:      "permit-read",
		Effect:  model.EffectPermit,
		Actions: []string{"read"},
	}

	t.Run("RepeatedRequest_HitsCache", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", policy)
		request := accessRequest(map[string]interface{}{"department": "engineering"}, nil)

		first := evaluator.Evaluate(ctx, request, snapshot)
		second := evaluator.Evaluate(ctx, request, snapshot)

		require.Equal(t, model.OutcomeAllow, first.Outcome)
		assert.Same(t, first, second)
	})

	t.Run("VersionChange_MissesCache", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		request := accessRequest(map[string]interface{}{"department": "engineering"}, nil)

		first := evaluator.Evaluate(ctx, request, snapshotWith("v1", policy))
		second := evaluator.Evaluate(ctx, request, snapshotWith("v2"))

		assert.Equal(t, model.OutcomeAllow, first.Outcome)
		assert.Equal(t, model.OutcomeDeny, second.Outcome)
		assert.Equal(t, "v2", second.StoreVersion)
	})

	t.Run("ColonValuedFields_DoNotShareEntries", func(t *testing.T) {
		scopedPolicy := model.Policy{
			ID:        "permit-scoped-read",
			Effect:    model.EffectPermit,
			Actions:   []string{"read"},
			Resources: []string{"x:doc"},
		}
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", scopedPolicy)

		first := &model.AccessRequest{
			Principal: model.Principal{ID: "alice"},
			Action:    "read",
			Resource:  "x:doc",
		}
		decision := evaluator.Evaluate(ctx, first, snapshot)
		require.Equal(t, model.OutcomeAllow, decision.Outcome)

		// Same concatenation, different field boundaries: no policy
		// targets action "read:x" on resource "doc".
		second := &model.AccessRequest{
			Principal: model.Principal{ID: "alice"},
			Action:    "read:x",
			Resource:  "doc",
		}
		decision = evaluator.Evaluate(ctx, second, snapshot)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonNoMatchingPolicy, decision.Reason)
	})

	t.Run("FlushCache_Reevaluates", func(t *testing.T) {
		evaluator := engine.NewEvaluator(16)
		snapshot := snapshotWith("v1", policy)
		request := accessRequest(map[string]interface{}{"department": "engineering"}, nil)

		first := evaluator.Evaluate(ctx, request, snapshot)
		evaluator.FlushCache()
		second := evaluator.Evaluate(ctx, request, snapshot)

		assert.Equal(t, first.Outcome, second.Outcome)
		assert.NotSame(t, first, second)
	})
}
