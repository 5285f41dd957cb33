package condition

import "testing"

func evalExpr(t *testing.T, expr string, env Env) bool {
	t.Helper()
	tree, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", expr, err)
	}
	got, err := Eval(tree, env)
	if err != nil {
		t.Fatalf("Eval(%q) error: %v", expr, err)
	}
	return got
}

func TestEval_Comparisons(t *testing.T) {
	cases := []struct {
		expr string
		env  Env
		want bool
	}{
		{"len(input) > 100", Env{Input: "short"}, false},
		{"len(input) > 2", Env{Input: "short"}, true},
		{"state.count >= 3", Env{State: map[string]any{"count": 3.0}}, true},
		{"state.count >= 3", Env{State: map[string]any{"count": 2.0}}, false},
		{"params.tier == 'premium'", Env{Params: map[string]any{"tier": "premium"}}, true},
		{"params.tier == 'premium'", Env{Params: map[string]any{"tier": "free"}}, false},
	}
	for _, tc := range cases {
		if got := evalExpr(t, tc.expr, tc.env); got != tc.want {
			t.Errorf("eval(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEval_StringOps(t *testing.T) {
	env := Env{Input: "this is urgent news"}
	if !evalExpr(t, "input contains 'urgent'", env) {
		t.Error("expected contains match")
	}
	if evalExpr(t, "input contains 'calm'", env) {
		t.Error("expected contains non-match")
	}
	if !evalExpr(t, "input startswith 'this'", env) {
		t.Error("expected startswith match")
	}
	if !evalExpr(t, "input endswith 'news'", env) {
		t.Error("expected endswith match")
	}
}

func TestEval_BooleanCombinations(t *testing.T) {
	env := Env{
		State: map[string]any{"active": true},
		Input: "hello",
	}
	if !evalExpr(t, "state.active and len(input) > 0", env) {
		t.Error("expected and-combination true")
	}
	if !evalExpr(t, "not state.active or len(input) > 0", env) {
		t.Error("expected or-combination true")
	}
	if evalExpr(t, "not state.active", env) {
		t.Error("expected not to invert true to false")
	}
}

func TestEval_InOperator(t *testing.T) {
	env := Env{Params: map[string]any{"tier": "gold"}}
	tree, err := Parse("params.tier in 'silver gold bronze'")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	got, err := Eval(tree, env)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if !got {
		t.Error("expected 'gold' to be found in the membership string")
	}
}

func TestEval_UnknownPathResolvesFalsy(t *testing.T) {
	if evalExpr(t, "state.nonexistent", Env{State: map[string]any{}}) {
		t.Error("expected unknown path to resolve falsy, not error")
	}
}

func TestParse_RejectsUnknownCharacters(t *testing.T) {
	if _, err := Parse("input @ 1"); err == nil {
		t.Error("expected parse error for disallowed character")
	}
}
