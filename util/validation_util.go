// util/validation_util.go

package util

import (
	"fmt"

	"github.com/verdictd/verdict/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidatePolicy(policy model.Policy) error {
	if policy.ID == "" {
		return fmt.Errorf("policy ID cannot be empty")
	}
	if policy.Effect != model.EffectPermit && policy.Effect != model.EffectForbid {
		return fmt.Errorf("policy effect must be either 'permit' or 'forbid'")
	}
	for _, condition := range policy.Conditions {
		if condition.Attribute == "" {
			return fmt.Errorf("condition attribute cannot be empty")
		}
		if !knownOperator(condition.Operator) {
			return fmt.Errorf("unknown condition operator %q", condition.Operator)
		}
	}
	return nil
}

func (v *ValidationUtil) ValidateSnapshotRequest(policies []model.Policy, schema model.Schema) error {
	if len(schema.EntityTypes) == 0 {
		return fmt.Errorf("schema must declare at least one entity type")
	}
	seen := make(map[string]bool, len(policies))
	for _, policy := range policies {
		if err := v.ValidatePolicy(policy); err != nil {
			return err
		}
		if seen[policy.ID] {
			return fmt.Errorf("duplicate policy ID %q", policy.ID)
		}
		seen[policy.ID] = true
	}
	return nil
}

func knownOperator(op model.Operator) bool {
	for _, known := range model.Operators {
		if op == known {
			return true
		}
	}
	return false
}
