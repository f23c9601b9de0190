// model/policy.go
package model

import (
	"time"
)

type Effect string

const (
	EffectPermit Effect = "permit"
	EffectForbid Effect = "forbid"
)

// Policy is a named authorization rule. Its target lists (Principals,
// Actions, Resources) select the requests it applies to; "*" or an empty
// list matches anything. Conditions further constrain matched requests.
type Policy struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Effect      Effect      `json:"effect"`
	Principals  []string    `json:"principals"`
	Actions     []string    `json:"actions"`
	Resources   []string    `json:"resources"`
	Conditions  []Condition `json:"conditions,omitempty"`
}

// Condition is a typed predicate over request attributes. Attribute is a
// dotted reference such as "principal.account_id" or "context.query_type".
// Value is either a literal or a reference of the form "${context.account_id}"
// resolved against the same attribute space at evaluation time.
type Condition struct {
	Attribute string      `json:"attribute"`
	Operator  Operator    `json:"operator"`
	Value     interface{} `json:"value"`
}

type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "ne"
	OpIn             Operator = "in"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
)

var Operators = []Operator{OpEqual, OpNotEqual, OpIn, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpContains}

// ReferencePath reports whether a condition value is an attribute reference
// of the form "${entity.attribute}" and returns the dotted path inside it.
func ReferencePath(value interface{}) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	if len(s) < 4 || s[:2] != "${" || s[len(s)-1] != '}' {
		return "", false
	}

	return s[2 : len(s)-1], true
}

// Schema declares the entity types a store's policies may reference and
// the attributes each entity type carries.
type Schema struct {
	EntityTypes map[string]EntityType `json:"entity_types"`
}

type EntityType struct {
	Attributes map[string]string `json:"attributes"` // attribute name -> type name
}

// PolicySnapshot is one immutable version of a policy store. A snapshot is
// never mutated after installation; updates replace the whole snapshot.
type PolicySnapshot struct {
	StoreID      string    `json:"store_id"`
	Version      string    `json:"version"`
	LastModified time.Time `json:"last_modified"`
	Policies     []Policy  `json:"policies"`
	Schema       Schema    `json:"schema"`
}
