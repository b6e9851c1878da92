// internal/rules/evaluate.go
package rules

import (
	"time"

	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Rule evaluation orchestration.
 *
 * Evaluates a CompiledRule against the fact rows of one subject (customer)
 * with DNF semantics (OR of AND runs).
 *
 * Evaluation flow:
 *   1. OR groups in order (short-circuit on first match)
 *   2. AND terms in order (short-circuit on first non-match); a group term
 *      is itself an OR of AND runs
 *   3. Per condition: filter the source's rows by eligibility period ->
 *      apply function -> compare against the target
 *
 * Functions:
 *   - N/A: any row whose field satisfies the comparison; with no field the
 *     condition holds when the period has at least one row
 *   - count: number of rows (rows with a non-null field when one is named)
 *   - sum/avg/max/min: over cells that coerce to numbers, others skipped;
 *     sum of nothing is 0, avg/max/min of nothing never match
 *
 * Periods are measured against the date column resolved at compile time.
 * Rolling N days covers [asOf-N days, asOf]; Current month covers the
 * calendar month of asOf up to asOf. Rows without a parseable date are
 * outside every period.
 *
 * Evaluation is a pure function of (rule, facts, asOf).
 */

// Facts holds a subject's rows per data source.
type Facts map[string][]map[string]any

// MatchResult contains the outcome of rule evaluation.
type MatchResult struct {
	Matched bool `json:"matched"`
	// MatchedConditions lists the ids of the conditions in the satisfied AND run.
	MatchedConditions []string `json:"matchedConditions"`
	// Observed maps condition id to the value compared against its target.
	Observed map[string]any `json:"observed"`
}

// Evaluate checks if the rule holds for facts as of asOf.
func Evaluate(rule *CompiledRule, facts Facts, asOf time.Time) MatchResult {
	for _, group := range rule.OrGroups {
		observed := make(map[string]any)
		ids, ok := evaluateAndRun(group.Terms, facts, asOf, observed)
		if ok {
			return MatchResult{Matched: true, MatchedConditions: ids, Observed: observed}
		}
	}
	return MatchResult{}
}

func evaluateAndRun(terms []CompiledTerm, facts Facts, asOf time.Time, observed map[string]any) ([]string, bool) {
	var ids []string
	for _, term := range terms {
		if term.Condition != nil {
			matched, value := evaluateCondition(*term.Condition, facts, asOf)
			if !matched {
				return nil, false
			}
			observed[term.Condition.ID] = value
			ids = append(ids, term.Condition.ID)
			continue
		}

		groupIDs, ok := evaluateGroup(term.Group, facts, asOf, observed)
		if !ok {
			return nil, false
		}
		ids = append(ids, groupIDs...)
	}
	return ids, true
}

// evaluateGroup returns the ids of the first satisfied run within a group.
func evaluateGroup(runs []CompiledConditionRun, facts Facts, asOf time.Time, observed map[string]any) ([]string, bool) {
	for _, run := range runs {
		local := make(map[string]any, len(run.Conditions))
		ids := make([]string, 0, len(run.Conditions))
		ok := true
		for _, cc := range run.Conditions {
			matched, value := evaluateCondition(cc, facts, asOf)
			if !matched {
				ok = false
				break
			}
			local[cc.ID] = value
			ids = append(ids, cc.ID)
		}
		if ok {
			for k, v := range local {
				observed[k] = v
			}
			return ids, true
		}
	}
	return nil, false
}

// evaluateCondition applies period filter, function and operator.
// Returns the observed value alongside the match.
func evaluateCondition(cc CompiledCondition, facts Facts, asOf time.Time) (bool, any) {
	rows := filterPeriod(facts[cc.Source], cc, asOf)

	switch cc.Function {
	case types.FuncCount:
		n := 0
		for _, row := range rows {
			if cc.Field == "" || row[cc.Field] != nil {
				n++
			}
		}
		return Compare(cc.Operator, float64(n), cc.Target), float64(n)

	case types.FuncSum, types.FuncAvg, types.FuncMax, types.FuncMin:
		nums := numericCells(rows, cc.Field)
		agg, ok := aggregate(cc.Function, nums)
		if !ok {
			return false, nil
		}
		return Compare(cc.Operator, agg, cc.Target), agg

	default:
		if cc.Field == "" {
			return len(rows) > 0, float64(len(rows))
		}
		for _, row := range rows {
			v := coerceValue(row[cc.Field])
			if v != nil && Compare(cc.Operator, v, cc.Target) {
				return true, v
			}
		}
		return false, nil
	}
}

func filterPeriod(rows []map[string]any, cc CompiledCondition, asOf time.Time) []map[string]any {
	if cc.Period == types.PeriodNA || cc.DateField == "" {
		return rows
	}

	var from time.Time
	if days := cc.Period.RollingDays(); days > 0 {
		from = asOf.AddDate(0, 0, -days)
	} else {
		u := asOf.UTC()
		from = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		d, ok := parseDate(row[cc.DateField])
		if !ok || d.Before(from) || d.After(asOf) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func numericCells(rows []map[string]any, field string) []float64 {
	nums := make([]float64, 0, len(rows))
	for _, row := range rows {
		f, err := coerceNumeric(row[field])
		if err != nil {
			continue
		}
		nums = append(nums, f)
	}
	return nums
}

func aggregate(fn types.Function, nums []float64) (float64, bool) {
	if fn == types.FuncSum {
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total, true
	}
	if len(nums) == 0 {
		return 0, false
	}

	switch fn {
	case types.FuncAvg:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), true
	case types.FuncMax:
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return m, true
	case types.FuncMin:
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return m, true
	default:
		return 0, false
	}
}
