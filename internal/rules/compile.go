// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Rule compilation for evaluation.
 *
 * Compiles a validated types.RuleSet into DNF (OR of AND runs) with
 * pre-coerced comparison targets and resolved date columns.
 *
 * Compilation workflow:
 *   1. Split the top-level list into runs at every OR connector. AND binds
 *      tighter than OR, so "a AND b OR c" is (a AND b) OR c.
 *   2. Compile each group's conditions the same way into a nested DNF.
 *   3. Per condition: check the reference against the registry, resolve the
 *      date column for period filtering, coerce the target once.
 *
 * Aggregates without a field and periods on a source without a date column
 * fail here with ErrNotCompilable.
 *
 * Sibling order is preserved, so matched condition ids are reported in the
 * order the rule lists them.
 */

// CompiledCondition is a pre-processed condition ready for evaluation.
type CompiledCondition struct {
	ID        string
	Source    string
	Field     string
	DateField string // empty when Period is N/A
	Period    types.EligibilityPeriod
	Function  types.Function
	Operator  types.Operator
	Target    any // float64 when the value reads as a number, else the string
}

// CompiledTerm is one element of an AND run: a bare condition or a group.
type CompiledTerm struct {
	Condition *CompiledCondition
	Group     []CompiledConditionRun // OR of AND runs within the group
}

// CompiledConditionRun is an AND run of conditions inside a group.
type CompiledConditionRun struct {
	Conditions []CompiledCondition
}

// CompiledOrGroup is an AND run at the top level.
type CompiledOrGroup struct {
	Terms []CompiledTerm
}

// CompiledRule is fully pre-processed and ready for evaluation.
type CompiledRule struct {
	OrGroups       []CompiledOrGroup
	ConditionCount int
}

// Compile pre-processes rs for evaluation against facts from reg's sources.
// dateFields overrides the date column per source.
func Compile(rs *types.RuleSet, reg *schema.Registry, dateFields map[string]string) (*CompiledRule, error) {
	if rs.Empty() {
		return nil, fmt.Errorf("%w: rule has no conditions", types.ErrNotCompilable)
	}

	compiled := &CompiledRule{ConditionCount: rs.ConditionCount()}

	for _, run := range splitOR(rs.Rules, types.RuleNode.NodeConnector) {
		group := CompiledOrGroup{Terms: make([]CompiledTerm, 0, len(run))}
		for _, node := range run {
			switch n := node.(type) {
			case *types.Condition:
				cc, err := compileCondition(*n, reg, dateFields)
				if err != nil {
					return nil, err
				}
				group.Terms = append(group.Terms, CompiledTerm{Condition: &cc})
			case *types.ConditionGroup:
				runs, err := compileGroup(n, reg, dateFields)
				if err != nil {
					return nil, err
				}
				group.Terms = append(group.Terms, CompiledTerm{Group: runs})
			default:
				return nil, fmt.Errorf("%w: unsupported rule node %T", types.ErrNotCompilable, node)
			}
		}
		compiled.OrGroups = append(compiled.OrGroups, group)
	}

	return compiled, nil
}

func compileGroup(g *types.ConditionGroup, reg *schema.Registry, dateFields map[string]string) ([]CompiledConditionRun, error) {
	if len(g.Conditions) == 0 {
		return nil, fmt.Errorf("%w: group %s is empty", types.ErrNotCompilable, g.ID)
	}
	connector := func(c types.Condition) types.Connector { return c.Connector }

	var runs []CompiledConditionRun
	for _, run := range splitOR(g.Conditions, connector) {
		cr := CompiledConditionRun{Conditions: make([]CompiledCondition, 0, len(run))}
		for _, c := range run {
			cc, err := compileCondition(c, reg, dateFields)
			if err != nil {
				return nil, err
			}
			cr.Conditions = append(cr.Conditions, cc)
		}
		runs = append(runs, cr)
	}
	return runs, nil
}

// compileCondition checks references and evaluability, and coerces the target.
func compileCondition(c types.Condition, reg *schema.Registry, dateFields map[string]string) (CompiledCondition, error) {
	if !reg.HasSource(c.DataSource) {
		return CompiledCondition{}, &types.InvalidReferenceError{
			Source: c.DataSource,
			Field:  c.Field,
			Err:    &types.UnknownSourceError{Source: c.DataSource},
		}
	}
	if c.Field != "" && !reg.HasField(c.DataSource, c.Field) {
		return CompiledCondition{}, &types.InvalidReferenceError{Source: c.DataSource, Field: c.Field}
	}

	switch c.Function {
	case types.FuncSum, types.FuncAvg, types.FuncMax, types.FuncMin:
		if c.Field == "" {
			return CompiledCondition{}, fmt.Errorf("%w: condition %s aggregates %s without a field",
				types.ErrNotCompilable, c.ID, c.Function)
		}
	}

	cc := CompiledCondition{
		ID:       c.ID,
		Source:   c.DataSource,
		Field:    c.Field,
		Period:   c.EligibilityPeriod,
		Function: c.Function,
		Operator: c.Operator,
		Target:   coerceValue(c.Value),
	}
	if cc.Period == "" {
		cc.Period = types.PeriodNA
	}
	if cc.Function == "" {
		cc.Function = types.FuncNA
	}

	if cc.Period != types.PeriodNA {
		cc.DateField = schema.DateField(reg, c.DataSource, dateFields)
		if cc.DateField == "" {
			return CompiledCondition{}, fmt.Errorf("%w: condition %s uses %q but %s has no date column",
				types.ErrNotCompilable, c.ID, cc.Period, c.DataSource)
		}
	}

	return cc, nil
}

// splitOR cuts a sibling list after every element whose connector is OR.
func splitOR[T any](items []T, connector func(T) types.Connector) [][]T {
	var runs [][]T
	start := 0
	for i, item := range items {
		if connector(item) == types.ConnectorOR && i < len(items)-1 {
			runs = append(runs, items[start:i+1])
			start = i + 1
		}
	}
	if start < len(items) {
		runs = append(runs, items[start:])
	}
	return runs
}
