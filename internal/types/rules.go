// internal/types/rules.go
package types

import "strings"

/*
 * Domain types for eligibility rules.
 *
 * A RuleSet is an ordered list of RuleNodes. A RuleNode is either a single
 * Condition or a ConditionGroup holding an ordered list of Conditions. The
 * variant is sealed: only *Condition and *ConditionGroup implement RuleNode,
 * and every walk over the tree is an exhaustive type switch.
 *
 * Key types:
 *   - Condition: comparison over one field of one data source, optionally
 *     aggregated over an eligibility period
 *   - ConditionGroup: AND/OR joined Conditions treated as one unit
 *   - RuleSet: top-level ordered collection of nodes
 *
 * Enumerations are closed string types. Parse* helpers map raw text onto the
 * closed set case-insensitively and report whether the value was recognized;
 * callers decide the fallback policy (internal/rules rejects).
 *
 * Connector semantics: the connector of element i joins it to element i+1.
 * ConnectorNone is the JSON null and belongs only on the last sibling.
 */

// RuleType tags a RuleNode variant.
type RuleType string

const (
	RuleTypeCondition      RuleType = "condition"
	RuleTypeConditionGroup RuleType = "conditionGroup"
)

// EligibilityPeriod is the time window an aggregation function runs over.
type EligibilityPeriod string

const (
	PeriodNA           EligibilityPeriod = "N/A"
	PeriodRolling30    EligibilityPeriod = "Rolling 30 days"
	PeriodRolling60    EligibilityPeriod = "Rolling 60 days"
	PeriodRolling90    EligibilityPeriod = "Rolling 90 days"
	PeriodCurrentMonth EligibilityPeriod = "Current month"
)

// EligibilityPeriods lists the closed set in display order.
var EligibilityPeriods = []EligibilityPeriod{
	PeriodNA, PeriodRolling30, PeriodRolling60, PeriodRolling90, PeriodCurrentMonth,
}

// RollingDays returns the window length for rolling periods, 0 otherwise.
func (p EligibilityPeriod) RollingDays() int {
	switch p {
	case PeriodRolling30:
		return 30
	case PeriodRolling60:
		return 60
	case PeriodRolling90:
		return 90
	default:
		return 0
	}
}

// Function is the aggregation applied to a field before comparison.
type Function string

const (
	FuncNA    Function = "N/A"
	FuncSum   Function = "sum"
	FuncCount Function = "count"
	FuncAvg   Function = "avg"
	FuncMax   Function = "max"
	FuncMin   Function = "min"
)

// Functions lists the closed set in display order.
var Functions = []Function{FuncNA, FuncSum, FuncCount, FuncAvg, FuncMax, FuncMin}

// Operator is the comparison applied to the (aggregated) field value.
type Operator string

const (
	OpEq       Operator = "="
	OpGt       Operator = ">"
	OpLt       Operator = "<"
	OpGte      Operator = ">="
	OpLte      Operator = "<="
	OpNeq      Operator = "!="
	OpContains Operator = "contains"
)

// Operators lists the closed set in display order.
var Operators = []Operator{OpEq, OpGt, OpLt, OpGte, OpLte, OpNeq, OpContains}

// Connector joins a node to its next sibling.
type Connector string

const (
	ConnectorNone Connector = ""
	ConnectorAND  Connector = "AND"
	ConnectorOR   Connector = "OR"
)

// RuleNode is the sealed variant of top-level rule entries.
type RuleNode interface {
	NodeID() string
	RuleType() RuleType
	NodeConnector() Connector
	isRuleNode()
}

// Condition is a single comparison over one field of one data source.
type Condition struct {
	ID                string
	DataSource        string
	Field             string // may be empty: the condition ranges over rows, not a column
	EligibilityPeriod EligibilityPeriod
	Function          Function
	Operator          Operator
	Value             string
	Priority          *int
	Connector         Connector
}

// ConditionGroup is an ordered, non-empty set of Conditions joined by connectors.
type ConditionGroup struct {
	ID         string
	Connector  Connector
	Conditions []Condition
}

func (c *Condition) NodeID() string           { return c.ID }
func (c *Condition) RuleType() RuleType       { return RuleTypeCondition }
func (c *Condition) NodeConnector() Connector { return c.Connector }
func (c *Condition) isRuleNode()              {}

func (g *ConditionGroup) NodeID() string           { return g.ID }
func (g *ConditionGroup) RuleType() RuleType       { return RuleTypeConditionGroup }
func (g *ConditionGroup) NodeConnector() Connector { return g.Connector }
func (g *ConditionGroup) isRuleNode()              {}

// RuleSet is the top-level ordered collection representing one eligibility rule.
type RuleSet struct {
	Rules []RuleNode
}

// Empty reports whether the set carries no rules.
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.Rules) == 0
}

// HasGroup reports whether any top-level node is a ConditionGroup.
func (rs *RuleSet) HasGroup() bool {
	if rs == nil {
		return false
	}
	for _, node := range rs.Rules {
		if _, ok := node.(*ConditionGroup); ok {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; callers that normalize never touch the original.
func (rs *RuleSet) Clone() *RuleSet {
	if rs == nil {
		return nil
	}
	out := &RuleSet{Rules: make([]RuleNode, 0, len(rs.Rules))}
	for _, node := range rs.Rules {
		switch n := node.(type) {
		case *Condition:
			c := n.clone()
			out.Rules = append(out.Rules, &c)
		case *ConditionGroup:
			g := &ConditionGroup{
				ID:         n.ID,
				Connector:  n.Connector,
				Conditions: make([]Condition, len(n.Conditions)),
			}
			for i := range n.Conditions {
				g.Conditions[i] = n.Conditions[i].clone()
			}
			out.Rules = append(out.Rules, g)
		}
	}
	return out
}

func (c Condition) clone() Condition {
	if c.Priority != nil {
		p := *c.Priority
		c.Priority = &p
	}
	return c
}

// ConditionCount returns the number of Conditions anywhere in the tree.
func (rs *RuleSet) ConditionCount() int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, node := range rs.Rules {
		switch v := node.(type) {
		case *Condition:
			n++
		case *ConditionGroup:
			n += len(v.Conditions)
		}
	}
	return n
}

// ParseEligibilityPeriod maps s onto the closed set, ignoring case and
// surrounding whitespace.
func ParseEligibilityPeriod(s string) (EligibilityPeriod, bool) {
	for _, p := range EligibilityPeriods {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, true
		}
	}
	return "", false
}

// ParseFunction maps s onto the closed set, ignoring case and surrounding whitespace.
func ParseFunction(s string) (Function, bool) {
	for _, f := range Functions {
		if strings.EqualFold(strings.TrimSpace(s), string(f)) {
			return f, true
		}
	}
	return "", false
}

// ParseOperator maps s onto the closed set, ignoring case and surrounding whitespace.
func ParseOperator(s string) (Operator, bool) {
	for _, op := range Operators {
		if strings.EqualFold(strings.TrimSpace(s), string(op)) {
			return op, true
		}
	}
	return "", false
}

// ParseConnector maps s onto the closed set. Empty input is ConnectorNone.
func ParseConnector(s string) (Connector, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ConnectorNone, true
	case "AND":
		return ConnectorAND, true
	case "OR":
		return ConnectorOR, true
	default:
		return "", false
	}
}

// ParseRuleType maps s onto the closed set, ignoring case and surrounding whitespace.
func ParseRuleType(s string) (RuleType, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(s), string(RuleTypeCondition)):
		return RuleTypeCondition, true
	case strings.EqualFold(strings.TrimSpace(s), string(RuleTypeConditionGroup)):
		return RuleTypeConditionGroup, true
	default:
		return "", false
	}
}
