// internal/rules/validate.go
package rules

import (
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Reference validation and structural normalization.
 *
 * Validate works on a clone of the candidate and returns the normalized
 * copy; neither the candidate nor the registry is modified.
 *
 * Workflow:
 *   1. Walk every condition in traversal order (top level, then each group's
 *      conditions in place). Groups and conditions that step 3 will prune
 *      are still checked: one bad reference rejects the whole set.
 *   2. Per condition:
 *        - unknown dataSource: fail immediately
 *        - empty field: accepted as is
 *        - field not a column of the source: correct it, trying
 *            a. case-insensitive match within the source
 *            b. case-insensitive match across all sources
 *            c. the alias table, first substring match wins
 *          then require an exact column match
 *   3. If any top-level group exists, drop top-level bare conditions.
 *   4. Connector fix-up per sibling list: non-last elements without a
 *      connector get AND, the last element's connector is cleared.
 *
 * On already-valid input every step is a no-op, so Validate is idempotent.
 * Everything not named above (ids, operators, values, periods, functions,
 * priorities, explicit connectors) is preserved verbatim.
 */

// Validator checks a candidate RuleSet against a schema registry.
type Validator struct {
	aliases []Alias
}

// NewValidator creates a validator with the given alias table. A nil table
// uses DefaultAliases; an empty non-nil table disables aliasing.
func NewValidator(aliases []Alias) *Validator {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	cp := make([]Alias, len(aliases))
	copy(cp, aliases)
	return &Validator{aliases: cp}
}

// Validate returns the normalized copy of candidate, or an
// *types.InvalidReferenceError for the first unresolved reference.
func (v *Validator) Validate(candidate *types.RuleSet, reg *schema.Registry) (*types.RuleSet, error) {
	if candidate == nil {
		return &types.RuleSet{}, nil
	}
	rs := candidate.Clone()

	for _, node := range rs.Rules {
		switch n := node.(type) {
		case *types.Condition:
			if err := v.resolve(n, reg); err != nil {
				return nil, err
			}
		case *types.ConditionGroup:
			for i := range n.Conditions {
				if err := v.resolve(&n.Conditions[i], reg); err != nil {
					return nil, err
				}
			}
		}
	}

	if rs.HasGroup() {
		kept := make([]types.RuleNode, 0, len(rs.Rules))
		for _, node := range rs.Rules {
			if _, ok := node.(*types.ConditionGroup); ok {
				kept = append(kept, node)
			}
		}
		rs.Rules = kept
	}

	fixTopLevelConnectors(rs.Rules)
	for _, node := range rs.Rules {
		if g, ok := node.(*types.ConditionGroup); ok {
			fixConditionConnectors(g.Conditions)
		}
	}

	return rs, nil
}

// resolve corrects c.Field in place or reports why it cannot be resolved.
func (v *Validator) resolve(c *types.Condition, reg *schema.Registry) error {
	if !reg.HasSource(c.DataSource) {
		return &types.InvalidReferenceError{
			Source: c.DataSource,
			Field:  c.Field,
			Err:    &types.UnknownSourceError{Source: c.DataSource},
		}
	}
	if c.Field == "" || reg.HasField(c.DataSource, c.Field) {
		return nil
	}

	original := c.Field
	corrected := original
	if f, ok := reg.CanonicalIn(c.DataSource, original); ok {
		corrected = f
	} else if f, ok := reg.Canonical(original); ok {
		corrected = f
	} else if f, ok := lookupAlias(v.aliases, original); ok {
		corrected = f
	}

	if !reg.HasField(c.DataSource, corrected) {
		return &types.InvalidReferenceError{Source: c.DataSource, Field: original}
	}
	c.Field = corrected
	return nil
}

func fixTopLevelConnectors(nodes []types.RuleNode) {
	for i, node := range nodes {
		last := i == len(nodes)-1
		switch n := node.(type) {
		case *types.Condition:
			n.Connector = fixConnector(n.Connector, last)
		case *types.ConditionGroup:
			n.Connector = fixConnector(n.Connector, last)
		}
	}
}

func fixConditionConnectors(conds []types.Condition) {
	for i := range conds {
		conds[i].Connector = fixConnector(conds[i].Connector, i == len(conds)-1)
	}
}

func fixConnector(c types.Connector, last bool) types.Connector {
	if last {
		return types.ConnectorNone
	}
	if c == types.ConnectorNone {
		return types.ConnectorAND
	}
	return c
}

// References lists every (dataSource, field) pair in traversal order.
func References(rs *types.RuleSet) [][2]string {
	var refs [][2]string
	for _, node := range rs.Rules {
		switch n := node.(type) {
		case *types.Condition:
			refs = append(refs, [2]string{n.DataSource, n.Field})
		case *types.ConditionGroup:
			for _, c := range n.Conditions {
				refs = append(refs, [2]string{c.DataSource, c.Field})
			}
		}
	}
	return refs
}
