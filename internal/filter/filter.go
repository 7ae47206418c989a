// Package filter compiles ad-hoc list-view filters into SQL predicates.
//
// Each budget kind declares an ordered set of filterable fields. A Criteria is
// built from raw query parameters and compiled into a WHERE clause that the
// store appends to its list query, so all filtering happens at the database
// level. Match semantics per field kind:
//
//   - String: case-insensitive substring; NULL columns never match.
//   - Year: substring of the stringified integer year, so "201" matches both
//     2019 and 201 but not 3012.
//   - Numeric: exact equality; a value that does not parse as a number is
//     silently dropped and leaves the field unconstrained.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder style and substring function.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// PredKind is the matching rule applied to a field.
type PredKind int

const (
	String PredKind = iota
	Year
	Numeric
)

// Field binds a query-parameter name to a table column and match rule.
type Field struct {
	Param  string
	Column string
	Kind   PredKind
}

// Filterable fields per budget kind, in rendering order. Param names are the
// record field names; `class` keeps its unaliased public name.
var (
	OperatingFields = []Field{
		{"fiscal_year", "FISCAL_YEAR", Year},
		{"fund_code", "FUND_CODE", String},
		{"program_code", "PROGRAM_CODE", String},
		{"account", "ACCOUNT", String},
		{"deptid", "DEPTID", String},
		{"operating_unit", "OPERATING_UNIT", String},
		{"class", "CLASS", String},
		{"project_id", "PROJECT_ID", String},
		{"budget_amount", "BUDGET_AMOUNT", Numeric},
		{"descr", "DESCR", String},
	}

	SupplierFields = []Field{
		{"fiscal_year", "FISCAL_YEAR", String},
		{"fund_code", "FUND_CODE", String},
		{"program_code", "PROGRAM_CODE", String},
		{"account", "ACCOUNT", String},
		{"deptid", "DEPTID", String},
		{"operating_unit", "OPERATING_UNIT", String},
		{"project_id", "PROJECT_ID", String},
		{"business_unit", "BUSINESS_UNIT", String},
		{"vendor_id", "VENDOR_ID", String},
		{"amount", "AMOUNT", Numeric},
		{"descr", "DESCR", String},
	}

	ConstructionFields = []Field{
		{"budget_period", "BUDGET_PERIOD", String},
		{"fund_code", "FUND_CODE", String},
		{"program_code", "PROGRAM_CODE", String},
		{"project_id", "PROJECT_ID", String},
		{"activity_id", "ACTIVITY_ID", String},
		{"line_descr", "LINE_DESCR", String},
		{"monetary_amount", "MONETARY_AMOUNT", Numeric},
	}
)

// Predicate is one compiled field constraint.
type Predicate struct {
	Column string
	Kind   PredKind
	Value  string
}

// Criteria is an ordered set of predicates.
type Criteria []Predicate

// Active reports whether at least one provided parameter carries a non-empty
// value. This is the boundary between the full-page latest-year default view
// and the filtered fragment view.
func Active(params map[string]string) bool {
	for _, v := range params {
		if v != "" {
			return true
		}
	}
	return false
}

// FromParams builds a Criteria from raw query parameters, keeping only the
// declared fields with non-empty values. Numeric values that fail to parse
// are dropped here, not reported.
func FromParams(params map[string]string, fields []Field) Criteria {
	var c Criteria
	for _, f := range fields {
		v, ok := params[f.Param]
		if !ok || v == "" {
			continue
		}
		if f.Kind == Numeric {
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				continue
			}
		}
		c = append(c, Predicate{Column: f.Column, Kind: f.Kind, Value: v})
	}
	return c
}

// Clause renders the criteria as an AND-joined SQL condition with positional
// arguments. argOffset is the number of placeholders already present in the
// surrounding query (Postgres numbering). An empty criteria yields an empty
// clause.
func (c Criteria) Clause(d Dialect, argOffset int) (string, []any) {
	if len(c) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(c))
	args := make([]any, 0, len(c))
	for _, p := range c {
		ph := placeholder(d, argOffset+len(args)+1)
		switch p.Kind {
		case Numeric:
			f, _ := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
			conds = append(conds, fmt.Sprintf(`%q = %s`, p.Column, ph))
			args = append(args, f)
		case Year:
			if d == Postgres {
				conds = append(conds, fmt.Sprintf(`strpos(%q::text, %s) > 0`, p.Column, ph))
			} else {
				conds = append(conds, fmt.Sprintf(`instr(CAST(%q AS TEXT), %s) > 0`, p.Column, ph))
			}
			args = append(args, p.Value)
		default:
			if d == Postgres {
				conds = append(conds, fmt.Sprintf(`strpos(lower(%q), lower(%s)) > 0`, p.Column, ph))
			} else {
				conds = append(conds, fmt.Sprintf(`instr(lower(%q), lower(%s)) > 0`, p.Column, ph))
			}
			args = append(args, p.Value)
		}
	}
	return strings.Join(conds, " AND "), args
}

func placeholder(d Dialect, n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
