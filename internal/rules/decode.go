// internal/rules/decode.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Candidate decoding.
 *
 * Turns the JSON object produced by the model (or an exported rule file)
 * into a typed RuleSet. Decoding is structural only; data-source and field
 * references are checked later by the Validator.
 *
 * Enum policy, applied everywhere:
 *   - eligibilityPeriod / function: absent or null -> "N/A"
 *   - connector: absent, null or "" -> none
 *   - operator: required
 *   - any present value outside the closed set -> MalformedResponseError
 *
 * value accepts any JSON scalar and keeps its text form ("1000", "true");
 * priority accepts an integer, a numeric string or null.
 *
 * ruleType is inferred when absent: an object with a "conditions" list is a
 * group, anything else a condition. Groups must be non-empty and may only
 * hold conditions.
 *
 * A missing "rules" key yields an empty RuleSet so the caller can tell
 * "nothing produced" apart from "unparseable".
 */

// ParseRuleSet extracts the JSON object from raw model text and decodes it.
func ParseRuleSet(text string) (*types.RuleSet, error) {
	span, ok := ExtractJSONObject(text)
	if !ok {
		return nil, &types.MalformedResponseError{Reason: "no JSON object in response"}
	}
	return DecodeRuleSet([]byte(span))
}

// DecodeRuleSet decodes one JSON object into a RuleSet.
func DecodeRuleSet(data []byte) (*types.RuleSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return nil, &types.MalformedResponseError{Reason: "invalid JSON", Err: err}
	}
	if dec.More() {
		return nil, &types.MalformedResponseError{Reason: "trailing data after JSON object"}
	}
	if top == nil {
		return nil, &types.MalformedResponseError{Reason: "response is not a JSON object"}
	}

	rawRules, ok := top["rules"]
	if !ok || rawRules == nil {
		return &types.RuleSet{}, nil
	}
	list, ok := rawRules.([]any)
	if !ok {
		return nil, malformed("rules", "must be a list")
	}

	rs := &types.RuleSet{Rules: make([]types.RuleNode, 0, len(list))}
	for i, item := range list {
		path := fmt.Sprintf("rules[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(path, "must be an object")
		}
		node, err := decodeNode(obj, path)
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, node)
	}
	return rs, nil
}

func decodeNode(obj map[string]any, path string) (types.RuleNode, error) {
	rt, err := nodeRuleType(obj, path)
	if err != nil {
		return nil, err
	}
	if rt == types.RuleTypeCondition {
		c, err := decodeCondition(obj, path)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	return decodeGroup(obj, path)
}

func nodeRuleType(obj map[string]any, path string) (types.RuleType, error) {
	raw, present := obj["ruleType"]
	if !present || raw == nil {
		if conds, ok := obj["conditions"].([]any); ok && len(conds) > 0 {
			return types.RuleTypeConditionGroup, nil
		}
		return types.RuleTypeCondition, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(path+".ruleType", "must be a string")
	}
	rt, ok := types.ParseRuleType(s)
	if !ok {
		return "", malformed(path+".ruleType", fmt.Sprintf("unknown rule type %q", s))
	}
	return rt, nil
}

func decodeGroup(obj map[string]any, path string) (*types.ConditionGroup, error) {
	g := &types.ConditionGroup{}

	id, err := decodeID(obj, path, "group")
	if err != nil {
		return nil, err
	}
	g.ID = id

	if g.Connector, err = decodeConnector(obj, path); err != nil {
		return nil, err
	}

	list, ok := obj["conditions"].([]any)
	if !ok {
		return nil, malformed(path+".conditions", "must be a list")
	}
	if len(list) == 0 {
		return nil, malformed(path+".conditions", "condition group is empty")
	}

	g.Conditions = make([]types.Condition, 0, len(list))
	for i, item := range list {
		cpath := fmt.Sprintf("%s.conditions[%d]", path, i)
		cobj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(cpath, "must be an object")
		}
		rt, err := nodeRuleType(cobj, cpath)
		if err != nil {
			return nil, err
		}
		if rt != types.RuleTypeCondition {
			return nil, malformed(cpath, "condition groups cannot nest")
		}
		c, err := decodeCondition(cobj, cpath)
		if err != nil {
			return nil, err
		}
		g.Conditions = append(g.Conditions, c)
	}
	return g, nil
}

func decodeCondition(obj map[string]any, path string) (types.Condition, error) {
	var c types.Condition
	var err error

	if c.ID, err = decodeID(obj, path, "cond"); err != nil {
		return c, err
	}
	if c.DataSource, err = optionalString(obj, path, "dataSource"); err != nil {
		return c, err
	}
	if c.Field, err = optionalString(obj, path, "field"); err != nil {
		return c, err
	}

	period, err := optionalString(obj, path, "eligibilityPeriod")
	if err != nil {
		return c, err
	}
	c.EligibilityPeriod = types.PeriodNA
	if period != "" {
		p, ok := types.ParseEligibilityPeriod(period)
		if !ok {
			return c, malformed(path+".eligibilityPeriod", fmt.Sprintf("unknown eligibility period %q", period))
		}
		c.EligibilityPeriod = p
	}

	fn, err := optionalString(obj, path, "function")
	if err != nil {
		return c, err
	}
	c.Function = types.FuncNA
	if fn != "" {
		f, ok := types.ParseFunction(fn)
		if !ok {
			return c, malformed(path+".function", fmt.Sprintf("unknown function %q", fn))
		}
		c.Function = f
	}

	op, err := optionalString(obj, path, "operator")
	if err != nil {
		return c, err
	}
	if op == "" {
		return c, malformed(path+".operator", "operator is required")
	}
	o, ok := types.ParseOperator(op)
	if !ok {
		return c, malformed(path+".operator", fmt.Sprintf("unknown operator %q", op))
	}
	c.Operator = o

	if c.Value, err = decodeValue(obj["value"], path); err != nil {
		return c, err
	}
	if c.Priority, err = decodePriority(obj["priority"], path); err != nil {
		return c, err
	}
	if c.Connector, err = decodeConnector(obj, path); err != nil {
		return c, err
	}

	if conds, ok := obj["conditions"]; ok && conds != nil {
		if list, ok := conds.([]any); !ok || len(list) > 0 {
			return c, malformed(path+".conditions", "a condition cannot carry conditions")
		}
	}
	return c, nil
}

func decodeID(obj map[string]any, path, prefix string) (string, error) {
	switch v := obj["id"].(type) {
	case nil:
		return types.NewNodeID(prefix), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return types.NewNodeID(prefix), nil
		}
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", malformed(path+".id", "must be a string")
	}
}

func optionalString(obj map[string]any, path, key string) (string, error) {
	switch v := obj[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", malformed(path+"."+key, "must be a string")
	}
}

func decodeConnector(obj map[string]any, path string) (types.Connector, error) {
	s, err := optionalString(obj, path, "connector")
	if err != nil {
		return types.ConnectorNone, err
	}
	conn, ok := types.ParseConnector(s)
	if !ok {
		return types.ConnectorNone, malformed(path+".connector", fmt.Sprintf("unknown connector %q", s))
	}
	return conn, nil
}

func decodeValue(raw any, path string) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", malformed(path+".value", "must be a scalar")
	}
}

func decodePriority(raw any, path string) (*int, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
	default:
		return nil, malformed(path+".priority", "must be an integer or null")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, malformed(path+".priority", fmt.Sprintf("not an integer: %q", s))
	}
	return &n, nil
}

func malformed(path, reason string) error {
	return &types.MalformedResponseError{Reason: path + ": " + reason}
}
