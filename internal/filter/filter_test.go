package filter

import (
	"strings"
	"testing"
)

func TestActive(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   bool
	}{
		{"no params", map[string]string{}, false},
		{"empty values only", map[string]string{"descr": "", "fund_code": ""}, false},
		{"one non-empty", map[string]string{"descr": "", "fund_code": "01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Active(tt.params); got != tt.want {
				t.Fatalf("Active = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromParamsDropsUnparseableNumbers(t *testing.T) {
	c := FromParams(map[string]string{"budget_amount": "abc"}, OperatingFields)
	if len(c) != 0 {
		t.Fatalf("unparseable numeric filter should be dropped, got %v", c)
	}

	c = FromParams(map[string]string{"budget_amount": "1000.50"}, OperatingFields)
	if len(c) != 1 || c[0].Column != "BUDGET_AMOUNT" {
		t.Fatalf("expected one BUDGET_AMOUNT predicate, got %v", c)
	}
}

func TestFromParamsIgnoresUnknownAndEmpty(t *testing.T) {
	c := FromParams(map[string]string{
		"descr":    "heat",
		"nonsense": "x",
		"account":  "",
	}, OperatingFields)
	if len(c) != 1 || c[0].Column != "DESCR" {
		t.Fatalf("expected only DESCR predicate, got %v", c)
	}
}

func TestClauseSQLite(t *testing.T) {
	c := FromParams(map[string]string{
		"fiscal_year":   "201",
		"descr":         "heat",
		"budget_amount": "12.5",
	}, OperatingFields)
	where, args := c.Clause(SQLite, 0)
	if len(args) != 3 {
		t.Fatalf("args = %v, want 3", args)
	}
	if !strings.Contains(where, `instr(CAST("FISCAL_YEAR" AS TEXT), ?) > 0`) {
		t.Fatalf("missing year substring condition: %s", where)
	}
	if !strings.Contains(where, `instr(lower("DESCR"), lower(?)) > 0`) {
		t.Fatalf("missing string substring condition: %s", where)
	}
	if !strings.Contains(where, `"BUDGET_AMOUNT" = ?`) {
		t.Fatalf("missing numeric condition: %s", where)
	}
	// Numeric args are passed as parsed floats.
	found := false
	for _, a := range args {
		if f, ok := a.(float64); ok && f == 12.5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("numeric arg not parsed: %v", args)
	}
}

func TestClausePostgresNumbering(t *testing.T) {
	c := FromParams(map[string]string{"descr": "x", "fund_code": "01"}, OperatingFields)
	where, args := c.Clause(Postgres, 2)
	if len(args) != 2 {
		t.Fatalf("args = %v, want 2", args)
	}
	if !strings.Contains(where, "$3") || !strings.Contains(where, "$4") {
		t.Fatalf("placeholders not offset: %s", where)
	}
	if strings.Contains(where, "?") {
		t.Fatalf("sqlite placeholder leaked into postgres clause: %s", where)
	}
}

func TestClauseEmpty(t *testing.T) {
	where, args := Criteria(nil).Clause(SQLite, 0)
	if where != "" || args != nil {
		t.Fatalf("empty criteria should compile to nothing, got %q %v", where, args)
	}
}
