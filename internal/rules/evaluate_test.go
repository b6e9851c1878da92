// internal/rules/evaluate_test.go
package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

var evalAsOf = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func evalRegistry() *schema.Registry {
	return schema.MustNew([]schema.Source{
		{Name: "accounts.csv", Fields: []string{"customer_id", "balance", "account_status"}},
		{Name: "txns.csv", Fields: []string{"id", "amount", "merchant", "posted_date"}},
	})
}

func evalFacts() Facts {
	return Facts{
		"accounts.csv": {
			{"customer_id": "42", "balance": "1500", "account_status": "Active"},
		},
		"txns.csv": {
			{"id": "t1", "amount": "200", "merchant": "Grocery Mart", "posted_date": "2024-03-10"},
			{"id": "t2", "amount": "300.50", "merchant": "Airline", "posted_date": "2024-03-01"},
			{"id": "t3", "amount": "5000", "merchant": "Car Dealer", "posted_date": "2023-12-01"},
			{"id": "t4", "amount": "n/a", "merchant": "Refund", "posted_date": "2024-02-20"},
			{"id": "t5", "amount": "75", "merchant": "Cafe", "posted_date": "not a date"},
		},
	}
}

func mustCompile(t *testing.T, rules ...types.RuleNode) *CompiledRule {
	t.Helper()
	compiled, err := Compile(&types.RuleSet{Rules: rules}, evalRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return compiled
}

func evalCond(id, source, field string, fn types.Function, period types.EligibilityPeriod, op types.Operator, value string) types.Condition {
	return types.Condition{
		ID: id, DataSource: source, Field: field,
		Function: fn, EligibilityPeriod: period, Operator: op, Value: value,
	}
}

func TestEvaluate_SimpleMatch(t *testing.T) {
	c := evalCond("c1", "accounts.csv", "balance", types.FuncNA, types.PeriodNA, types.OpGt, "1000")
	result := Evaluate(mustCompile(t, &c), evalFacts(), evalAsOf)

	if !result.Matched {
		t.Fatal("Matched = false, want true")
	}
	if diff := cmp.Diff([]string{"c1"}, result.MatchedConditions); diff != "" {
		t.Errorf("MatchedConditions mismatch (-want +got):\n%s", diff)
	}
	if result.Observed["c1"] != 1500.0 {
		t.Errorf("Observed[c1] = %v, want 1500", result.Observed["c1"])
	}
}

func TestEvaluate_Functions(t *testing.T) {
	tests := []struct {
		name string
		cond types.Condition
		want bool
		obs  any
	}{
		{
			name: "sum rolling 30 days",
			cond: evalCond("c", "txns.csv", "amount", types.FuncSum, types.PeriodRolling30, types.OpGte, "500.5"),
			want: true, obs: 500.5,
		},
		{
			name: "sum rolling 90 days excludes early december",
			cond: evalCond("c", "txns.csv", "amount", types.FuncSum, types.PeriodRolling90, types.OpGt, "5000"),
			want: false, obs: 500.5,
		},
		{
			name: "sum all time skips non-numeric",
			cond: evalCond("c", "txns.csv", "amount", types.FuncSum, types.PeriodNA, types.OpEq, "5575.5"),
			want: true, obs: 5575.5,
		},
		{
			name: "count current month",
			cond: evalCond("c", "txns.csv", "", types.FuncCount, types.PeriodCurrentMonth, types.OpEq, "2"),
			want: true, obs: 2.0,
		},
		{
			name: "count rolling 60 days",
			cond: evalCond("c", "txns.csv", "id", types.FuncCount, types.PeriodRolling60, types.OpEq, "3"),
			want: true, obs: 3.0,
		},
		{
			name: "avg",
			cond: evalCond("c", "txns.csv", "amount", types.FuncAvg, types.PeriodCurrentMonth, types.OpLt, "300"),
			want: true, obs: 250.25,
		},
		{
			name: "max",
			cond: evalCond("c", "txns.csv", "amount", types.FuncMax, types.PeriodNA, types.OpEq, "5000"),
			want: true, obs: 5000.0,
		},
		{
			name: "min",
			cond: evalCond("c", "txns.csv", "amount", types.FuncMin, types.PeriodNA, types.OpLt, "100"),
			want: true, obs: 75.0,
		},
		{
			name: "min rolling 30 days",
			cond: evalCond("c", "txns.csv", "amount", types.FuncMin, types.PeriodRolling30, types.OpGt, "-1"),
			want: true, obs: 200.0,
		},
		{
			name: "contains any row",
			cond: evalCond("c", "txns.csv", "merchant", types.FuncNA, types.PeriodNA, types.OpContains, "grocery"),
			want: true, obs: "Grocery Mart",
		},
		{
			name: "contains outside period",
			cond: evalCond("c", "txns.csv", "merchant", types.FuncNA, types.PeriodRolling30, types.OpContains, "car"),
			want: false,
		},
		{
			name: "no field means rows exist",
			cond: evalCond("c", "txns.csv", "", types.FuncNA, types.PeriodRolling30, types.OpEq, ""),
			want: true, obs: 3.0,
		},
		{
			name: "status equality ignores case",
			cond: evalCond("c", "accounts.csv", "account_status", types.FuncNA, types.PeriodNA, types.OpEq, "active"),
			want: true, obs: "Active",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cond
			result := Evaluate(mustCompile(t, &c), evalFacts(), evalAsOf)
			if result.Matched != tt.want {
				t.Fatalf("Matched = %v, want %v", result.Matched, tt.want)
			}
			if tt.want && result.Observed["c"] != tt.obs {
				t.Errorf("Observed = %#v, want %#v", result.Observed["c"], tt.obs)
			}
		})
	}
}

func TestEvaluate_EmptyAggregate(t *testing.T) {
	c := evalCond("c", "txns.csv", "amount", types.FuncAvg, types.PeriodRolling30, types.OpGt, "0")
	result := Evaluate(mustCompile(t, &c), Facts{}, evalAsOf)
	if result.Matched {
		t.Error("avg over no rows matched, want no match")
	}

	s := evalCond("s", "txns.csv", "amount", types.FuncSum, types.PeriodRolling30, types.OpEq, "0")
	if !Evaluate(mustCompile(t, &s), Facts{}, evalAsOf).Matched {
		t.Error("sum over no rows != 0")
	}
}

func TestEvaluate_Precedence(t *testing.T) {
	// false AND true OR true -> (false AND true) OR true -> true
	a := evalCond("a", "accounts.csv", "balance", types.FuncNA, types.PeriodNA, types.OpGt, "9999")
	a.Connector = types.ConnectorAND
	b := evalCond("b", "accounts.csv", "balance", types.FuncNA, types.PeriodNA, types.OpGt, "1000")
	b.Connector = types.ConnectorOR
	c := evalCond("c", "txns.csv", "merchant", types.FuncNA, types.PeriodNA, types.OpContains, "cafe")

	result := Evaluate(mustCompile(t, &a, &b, &c), evalFacts(), evalAsOf)
	if !result.Matched {
		t.Fatal("Matched = false, want true")
	}
	if diff := cmp.Diff([]string{"c"}, result.MatchedConditions); diff != "" {
		t.Errorf("MatchedConditions mismatch (-want +got):\n%s", diff)
	}

	// true OR false AND false -> true OR (false AND false) -> true
	b2 := b
	b2.Connector = types.ConnectorOR
	x := evalCond("x", "accounts.csv", "balance", types.FuncNA, types.PeriodNA, types.OpLt, "0")
	x.Connector = types.ConnectorAND
	y := x
	y.ID = "y"
	y.Connector = types.ConnectorNone
	if !Evaluate(mustCompile(t, &b2, &x, &y), evalFacts(), evalAsOf).Matched {
		t.Error("true OR (false AND false) did not match")
	}

	// all AND with one false -> false
	a2 := a
	b3 := b
	b3.Connector = types.ConnectorNone
	if Evaluate(mustCompile(t, &a2, &b3), evalFacts(), evalAsOf).Matched {
		t.Error("false AND true matched")
	}
}

func TestEvaluate_Groups(t *testing.T) {
	inner1 := evalCond("g1c1", "txns.csv", "amount", types.FuncSum, types.PeriodRolling30, types.OpGt, "100000")
	inner1.Connector = types.ConnectorOR
	inner2 := evalCond("g1c2", "accounts.csv", "balance", types.FuncNA, types.PeriodNA, types.OpGte, "1500")
	g1 := &types.ConditionGroup{ID: "g1", Connector: types.ConnectorAND, Conditions: []types.Condition{inner1, inner2}}

	inner3 := evalCond("g2c1", "txns.csv", "", types.FuncCount, types.PeriodNA, types.OpGte, "5")
	g2 := &types.ConditionGroup{ID: "g2", Conditions: []types.Condition{inner3}}

	result := Evaluate(mustCompile(t, g1, g2), evalFacts(), evalAsOf)
	if !result.Matched {
		t.Fatal("Matched = false, want true")
	}
	if diff := cmp.Diff([]string{"g1c2", "g2c1"}, result.MatchedConditions); diff != "" {
		t.Errorf("MatchedConditions mismatch (-want +got):\n%s", diff)
	}
	if _, ok := result.Observed["g1c1"]; ok {
		t.Error("Observed carries a condition from an unsatisfied run")
	}
}

func TestCompile_Errors(t *testing.T) {
	reg := evalRegistry()
	noDates := schema.MustNew([]schema.Source{{Name: "accounts.csv", Fields: []string{"balance"}}})

	tests := []struct {
		name    string
		reg     *schema.Registry
		cond    types.Condition
		wantErr error
	}{
		{"unknown source", reg, evalCond("c", "x.csv", "a", types.FuncNA, types.PeriodNA, types.OpEq, "1"), types.ErrUnknownSource},
		{"unknown field", reg, evalCond("c", "txns.csv", "nope", types.FuncNA, types.PeriodNA, types.OpEq, "1"), types.ErrInvalidReference},
		{"sum without field", reg, evalCond("c", "txns.csv", "", types.FuncSum, types.PeriodNA, types.OpGt, "1"), types.ErrNotCompilable},
		{"period without date column", noDates, evalCond("c", "accounts.csv", "balance", types.FuncNA, types.PeriodRolling30, types.OpGt, "1"), types.ErrNotCompilable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cond
			_, err := Compile(&types.RuleSet{Rules: []types.RuleNode{&c}}, tt.reg, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Compile(&types.RuleSet{}, reg, nil); !errors.Is(err, types.ErrNotCompilable) {
		t.Errorf("Compile(empty) error = %v, want ErrNotCompilable", err)
	}
}

func TestCompile_DateFieldOverride(t *testing.T) {
	reg := schema.MustNew([]schema.Source{{Name: "s.csv", Fields: []string{"opened_date", "closed_date", "v"}}})
	c := evalCond("c", "s.csv", "v", types.FuncCount, types.PeriodRolling30, types.OpGte, "1")

	compiled, err := Compile(&types.RuleSet{Rules: []types.RuleNode{&c}}, reg, map[string]string{"s.csv": "closed_date"})
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if got := compiled.OrGroups[0].Terms[0].Condition.DateField; got != "closed_date" {
		t.Errorf("DateField = %q, want closed_date", got)
	}
}

// Property-based test: row order never changes the outcome
func TestEvaluate_PropertyRowOrderIndependent(t *testing.T) {
	sum := evalCond("s", "txns.csv", "amount", types.FuncSum, types.PeriodRolling90, types.OpGt, "400")
	sum.Connector = types.ConnectorOR
	cnt := evalCond("n", "txns.csv", "merchant", types.FuncNA, types.PeriodRolling30, types.OpContains, "air")
	compiled, err := Compile(&types.RuleSet{Rules: []types.RuleNode{&sum, &cnt}}, evalRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("permuting rows keeps the match outcome", prop.ForAll(
		func(amounts []int, rotate int) bool {
			rows := make([]map[string]any, len(amounts))
			for i, a := range amounts {
				day := 1 + i%28
				rows[i] = map[string]any{
					"amount":      float64(a),
					"merchant":    []string{"Airline", "Cafe", "Shop"}[i%3],
					"posted_date": time.Date(2024, 2, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
				}
			}
			rotated := make([]map[string]any, len(rows))
			for i := range rows {
				rotated[i] = rows[(i+rotate)%len(rows)]
			}

			a := Evaluate(compiled, Facts{"txns.csv": rows}, evalAsOf)
			b := Evaluate(compiled, Facts{"txns.csv": rotated}, evalAsOf)
			return a.Matched == b.Matched
		},
		gen.SliceOfN(6, gen.IntRange(0, 200)),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
