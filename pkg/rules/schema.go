package rules

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/commonshold/core/pkg/contracts"
)

// Rule parameters are opaque to callers but not free-form: each rule type
// has a schema and malformed parameters are rejected at attach time, not
// discovered mid-evaluation.
var paramSchemas = map[contracts.RuleType]string{
	contracts.RuleAccessRequirement: `{
		"type": "object",
		"properties": {
			"custodian_only": {"type": "boolean"},
			"allowed_agents": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": false
	}`,
	contracts.RuleUsageLimit: `{
		"type": "object",
		"properties": {
			"max_per_window": {"type": "integer", "minimum": 1},
			"window_seconds": {"type": "integer", "minimum": 1}
		},
		"required": ["max_per_window"],
		"additionalProperties": false
	}`,
	contracts.RuleTransferConditions: `{
		"type": "object",
		"properties": {
			"require_note": {"type": "boolean"},
			"allowed_custodians": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": false
	}`,
	contracts.RuleCustodyRequirement: `{
		"type": "object",
		"properties": {
			"custodian_must_request": {"type": "boolean"},
			"min_remaining_quantity": {"type": "number", "minimum": 0}
		},
		"additionalProperties": false
	}`,
	contracts.RuleLocationRestriction: `{
		"type": "object",
		"properties": {
			"allowed_locations": {"type": "array", "items": {"type": "string"}},
			"forbidden_locations": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": false
	}`,
}

var compiledSchemas = func() map[contracts.RuleType]*jsonschema.Schema {
	out := make(map[contracts.RuleType]*jsonschema.Schema, len(paramSchemas))
	for rt, src := range paramSchemas {
		c := jsonschema.NewCompiler()
		url := fmt.Sprintf("schema://rules/%s.json", rt)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("rule schema %s: %v", rt, err))
		}
		out[rt] = c.MustCompile(url)
	}
	return out
}()

// ValidateParams checks a rule's parameters against its type's schema.
// Unknown rule types pass: the evaluator already treats them as fail-open.
func ValidateParams(rule contracts.GovernanceRule) error {
	sch, known := compiledSchemas[rule.Type]
	if !known {
		return nil
	}
	params := rule.Params
	if params == nil {
		params = map[string]any{}
	}
	if err := sch.Validate(normalize(params)); err != nil {
		return fmt.Errorf("rule %s (%s): invalid params: %w", rule.ID, rule.Type, err)
	}
	return nil
}

// normalize converts typed Go slices and ints into the generic JSON shapes
// the schema validator expects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
