// Package normalize turns loosely-typed spreadsheet rows into validated budget
// records. All transformations are pure: callers get back a new value and the
// input row is never persisted or mutated beyond the documented renames.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"budgetd/internal/core"
)

// Row maps a trimmed, lower-cased column header to the raw cell value.
type Row map[string]string

// Fixed code widths on all three budget tables.
const (
	fundCodeWidth    = 2
	programCodeWidth = 4
)

// ValidationError identifies the spreadsheet row and field that failed
// normalization. Row is the zero-based data row index.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, field %q: %s", e.Row, e.Field, e.Reason)
}

// Headers trims and lower-cases column headers, preserving order.
func Headers(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// AliasClass renames a `class` column to `class_`. The source schema reserves
// the bare word, so rows destined for the operating table carry the suffixed
// name from this point on.
func AliasClass(row Row) Row {
	if v, ok := row["class"]; ok {
		row["class_"] = v
		delete(row, "class")
	}
	return row
}

// AliasClassHeader applies the same rename to an ordered header slice.
func AliasClassHeader(headers []string) []string {
	for i, h := range headers {
		if h == "class" {
			headers[i] = "class_"
		}
	}
	return headers
}

// PadCodes zero-pads fund_code to 2 and program_code to 4 characters. Only
// keys present in the row are touched.
func PadCodes(row Row) Row {
	if v, ok := row["fund_code"]; ok {
		row["fund_code"] = zfill(v, fundCodeWidth)
	}
	if v, ok := row["program_code"]; ok {
		row["program_code"] = zfill(v, programCodeWidth)
	}
	return row
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func requireString(idx int, row Row, field string) (string, error) {
	v := row[field]
	if v == "" {
		return "", &ValidationError{Row: idx, Field: field, Reason: "required"}
	}
	return v, nil
}

func optionalString(row Row, field string) *string {
	v, ok := row[field]
	if !ok || v == "" {
		return nil
	}
	return &v
}

func requireInt(idx int, row Row, field string) (int, error) {
	v, err := requireString(idx, row, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &ValidationError{Row: idx, Field: field, Reason: "not an integer"}
	}
	return n, nil
}

func requireFloat(idx int, row Row, field string) (float64, error) {
	v, err := requireString(idx, row, field)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &ValidationError{Row: idx, Field: field, Reason: "not a number"}
	}
	return f, nil
}

func optionalFloat(idx int, row Row, field string) (*float64, error) {
	v, ok := row[field]
	if !ok || v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, &ValidationError{Row: idx, Field: field, Reason: "not a number"}
	}
	return &f, nil
}

// OperatingFromRow builds a validated operating budget record from a
// normalized row. The caller is expected to have applied AliasClass and
// PadCodes first; idx is reported in any validation error.
func OperatingFromRow(idx int, row Row) (core.OperatingBudget, error) {
	var (
		b   core.OperatingBudget
		err error
	)
	if b.FiscalYear, err = requireInt(idx, row, "fiscal_year"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.FundCode, err = requireString(idx, row, "fund_code"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.ProgramCode, err = requireString(idx, row, "program_code"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.Account, err = requireString(idx, row, "account"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.DeptID, err = requireString(idx, row, "deptid"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.OperatingUnit, err = requireString(idx, row, "operating_unit"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.Class, err = requireString(idx, row, "class_"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.ProjectID, err = requireString(idx, row, "project_id"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.BudgetAmount, err = requireFloat(idx, row, "budget_amount"); err != nil {
		return core.OperatingBudget{}, err
	}
	if b.Descr, err = requireString(idx, row, "descr"); err != nil {
		return core.OperatingBudget{}, err
	}
	return b, nil
}

// SupplierFromRow builds a validated supplier budget record from a normalized
// row.
func SupplierFromRow(idx int, row Row) (core.SupplierBudget, error) {
	var (
		b   core.SupplierBudget
		err error
	)
	b.VendorID = optionalString(row, "vendor_id")
	b.Descr = optionalString(row, "descr")
	b.ProjectID = optionalString(row, "project_id")
	b.BusinessUnit = optionalString(row, "business_unit")
	if b.FiscalYear, err = requireString(idx, row, "fiscal_year"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.FundCode, err = requireString(idx, row, "fund_code"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.ProgramCode, err = requireString(idx, row, "program_code"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.Account, err = requireString(idx, row, "account"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.DeptID, err = requireString(idx, row, "deptid"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.OperatingUnit, err = requireString(idx, row, "operating_unit"); err != nil {
		return core.SupplierBudget{}, err
	}
	if b.Amount, err = requireFloat(idx, row, "amount"); err != nil {
		return core.SupplierBudget{}, err
	}
	if err := b.Validate(); err != nil {
		var fe *core.FieldError
		if errors.As(err, &fe) {
			return core.SupplierBudget{}, &ValidationError{Row: idx, Field: fe.Field, Reason: fe.Reason}
		}
		return core.SupplierBudget{}, err
	}
	return b, nil
}

// ConstructionFromRow builds a construction budget record. All fields are
// optional; only malformed numbers fail.
func ConstructionFromRow(idx int, row Row) (core.ConstructionBudget, error) {
	var (
		b   core.ConstructionBudget
		err error
	)
	b.BudgetPeriod = optionalString(row, "budget_period")
	b.FundCode = optionalString(row, "fund_code")
	b.ProgramCode = optionalString(row, "program_code")
	b.ProjectID = optionalString(row, "project_id")
	b.ActivityID = optionalString(row, "activity_id")
	b.LineDescr = optionalString(row, "line_descr")
	if b.MonetaryAmount, err = optionalFloat(idx, row, "monetary_amount"); err != nil {
		return core.ConstructionBudget{}, err
	}
	return b, nil
}
