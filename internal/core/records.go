package core

import "fmt"

type (
	// OperatingBudget is one line of the yearly operating budget. Every field
	// is required; the store assigns ID on create.
	OperatingBudget struct {
		ID            int64   `json:"id"`
		FiscalYear    int     `json:"fiscal_year"`
		FundCode      string  `json:"fund_code"`
		ProgramCode   string  `json:"program_code"`
		Account       string  `json:"account"`
		DeptID        string  `json:"deptid"`
		OperatingUnit string  `json:"operating_unit"`
		Class         string  `json:"class"`
		ProjectID     string  `json:"project_id"`
		BudgetAmount  float64 `json:"budget_amount"`
		Descr         string  `json:"descr"`
	}

	// SupplierBudget is one supplier commitment line. Vendor, description,
	// project and business unit are nullable in the source table.
	SupplierBudget struct {
		ID            int64   `json:"id"`
		VendorID      *string `json:"vendor_id"`
		Descr         *string `json:"descr"`
		FiscalYear    string  `json:"fiscal_year"`
		FundCode      string  `json:"fund_code"`
		ProgramCode   string  `json:"program_code"`
		Account       string  `json:"account"`
		DeptID        string  `json:"deptid"`
		OperatingUnit string  `json:"operating_unit"`
		ProjectID     *string `json:"project_id"`
		BusinessUnit  *string `json:"business_unit"`
		Amount        float64 `json:"amount"`
	}

	// ConstructionBudget is one capital-project line. The source table has no
	// NOT NULL constraints, so every field is optional.
	ConstructionBudget struct {
		ID             int64    `json:"id"`
		BudgetPeriod   *string  `json:"budget_period"`
		FundCode       *string  `json:"fund_code"`
		ProgramCode    *string  `json:"program_code"`
		ProjectID      *string  `json:"project_id"`
		ActivityID     *string  `json:"activity_id"`
		LineDescr      *string  `json:"line_descr"`
		MonetaryAmount *float64 `json:"monetary_amount"`
	}
)

// Fixed column widths on the supplier table.
const (
	SupplierFiscalYearLen    = 4
	SupplierFundCodeLen      = 2
	SupplierProgramCodeLen   = 4
	SupplierAccountLen       = 16
	SupplierDeptIDLen        = 8
	SupplierOperatingUnitLen = 8
)

// FieldError reports an invalid or missing field on a create/update payload.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func required(field, value string) *FieldError {
	if value == "" {
		return &FieldError{Field: field, Reason: "required"}
	}
	return nil
}

func maxLen(field, value string, n int) *FieldError {
	if len(value) > n {
		return &FieldError{Field: field, Reason: fmt.Sprintf("longer than %d characters", n)}
	}
	return nil
}

// Validate checks all required fields of an operating budget line.
func (b OperatingBudget) Validate() error {
	if b.FiscalYear == 0 {
		return &FieldError{Field: "fiscal_year", Reason: "required"}
	}
	for _, c := range []struct{ field, value string }{
		{"fund_code", b.FundCode},
		{"program_code", b.ProgramCode},
		{"account", b.Account},
		{"deptid", b.DeptID},
		{"operating_unit", b.OperatingUnit},
		{"class", b.Class},
		{"project_id", b.ProjectID},
		{"descr", b.Descr},
	} {
		if err := required(c.field, c.value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required fields and the fixed column widths of a supplier
// budget line.
func (b SupplierBudget) Validate() error {
	for _, c := range []struct {
		field, value string
		max          int
	}{
		{"fiscal_year", b.FiscalYear, SupplierFiscalYearLen},
		{"fund_code", b.FundCode, SupplierFundCodeLen},
		{"program_code", b.ProgramCode, SupplierProgramCodeLen},
		{"account", b.Account, SupplierAccountLen},
		{"deptid", b.DeptID, SupplierDeptIDLen},
		{"operating_unit", b.OperatingUnit, SupplierOperatingUnitLen},
	} {
		if err := required(c.field, c.value); err != nil {
			return err
		}
		if err := maxLen(c.field, c.value, c.max); err != nil {
			return err
		}
	}
	return nil
}

// Validate always succeeds: construction lines carry no required fields.
func (b ConstructionBudget) Validate() error {
	return nil
}
