package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/rulesmith/internal/types"
)

// exportNode fixes the canonical key order through field declaration order.
type exportNode struct {
	ID                string       `json:"id"`
	DataSource        *string      `json:"dataSource"`
	Field             *string      `json:"field"`
	EligibilityPeriod *string      `json:"eligibilityPeriod"`
	Function          *string      `json:"function"`
	Operator          *string      `json:"operator"`
	Value             *string      `json:"value"`
	Priority          *int         `json:"priority"`
	RuleType          string       `json:"ruleType"`
	Connector         *string      `json:"connector"`
	Conditions        []exportNode `json:"conditions"`
}

type exportDoc struct {
	Rules []exportNode `json:"rules"`
}

// Export renders rs as the canonical JSON document: two-space indentation,
// every node carrying all keys in canonical order, null for absent values.
func Export(rs *types.RuleSet) ([]byte, error) {
	doc := exportDoc{Rules: []exportNode{}}
	if rs != nil {
		for _, node := range rs.Rules {
			switch n := node.(type) {
			case *types.Condition:
				doc.Rules = append(doc.Rules, exportCondition(n))
			case *types.ConditionGroup:
				doc.Rules = append(doc.Rules, exportGroup(n))
			default:
				return nil, fmt.Errorf("unsupported rule node %T", node)
			}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExportFileName names the download file for a rule confirmed at t.
func ExportFileName(t time.Time) string {
	return "eligibility_rule_" + t.Format("20060102_150405") + ".json"
}

func exportCondition(c *types.Condition) exportNode {
	return exportNode{
		ID:                c.ID,
		DataSource:        nullable(c.DataSource),
		Field:             nullable(c.Field),
		EligibilityPeriod: nullable(string(c.EligibilityPeriod)),
		Function:          nullable(string(c.Function)),
		Operator:          nullable(string(c.Operator)),
		Value:             nullable(c.Value),
		Priority:          c.Priority,
		RuleType:          string(types.RuleTypeCondition),
		Connector:         nullable(string(c.Connector)),
	}
}

func exportGroup(g *types.ConditionGroup) exportNode {
	n := exportNode{
		ID:         g.ID,
		RuleType:   string(types.RuleTypeConditionGroup),
		Connector:  nullable(string(g.Connector)),
		Conditions: make([]exportNode, 0, len(g.Conditions)),
	}
	for i := range g.Conditions {
		n.Conditions = append(n.Conditions, exportCondition(&g.Conditions[i]))
	}
	return n
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
