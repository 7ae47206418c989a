package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budgetd/internal/core"
	"budgetd/internal/filter"

	_ "modernc.org/sqlite"
)

const (
	operatingColumns = `"FISCAL_YEAR", "FUND_CODE", "PROGRAM_CODE", "ACCOUNT", "DEPTID", "OPERATING_UNIT", "CLASS", "PROJECT_ID", "BUDGET_AMOUNT", "DESCR"`

	supplierColumns = `"VENDOR_ID", "DESCR", "FISCAL_YEAR", "FUND_CODE", "PROGRAM_CODE", "ACCOUNT", "DEPTID", "OPERATING_UNIT", "PROJECT_ID", "BUSINESS_UNIT", "AMOUNT"`

	constructionColumns = `"BUDGET_PERIOD", "FUND_CODE", "PROGRAM_CODE", "PROJECT_ID", "ACTIVITY_ID", "LINE_DESCR", "MONETARY_AMOUNT"`
)

// SQLiteStore persists all three budget kinds in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and runs
// the embedded migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1 // SQLite treats a negative LIMIT as "no cap"
	}
	return limit
}

// ---- operating ----

func (s *SQLiteStore) CreateOperating(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO OPERATING_BUDGET (`+operatingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FiscalYear, b.FundCode, b.ProgramCode, b.Account, b.DeptID,
		b.OperatingUnit, b.Class, b.ProjectID, b.BudgetAmount, b.Descr)
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("insert operating budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	slog.InfoContext(ctx, "Operating budget created", "id", b.ID, "fiscal_year", b.FiscalYear)
	return b, nil
}

func scanOperating(row interface{ Scan(...any) error }) (core.OperatingBudget, error) {
	var b core.OperatingBudget
	err := row.Scan(&b.ID, &b.FiscalYear, &b.FundCode, &b.ProgramCode, &b.Account,
		&b.DeptID, &b.OperatingUnit, &b.Class, &b.ProjectID, &b.BudgetAmount, &b.Descr)
	return b, err
}

func (s *SQLiteStore) GetOperating(ctx context.Context, id int64) (core.OperatingBudget, error) {
	b, err := scanOperating(s.db.QueryRowContext(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET WHERE "ID" = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.OperatingBudget{}, ErrNotFound
	}
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("get operating budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) queryOperating(ctx context.Context, query string, args ...any) ([]core.OperatingBudget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operating budgets: %w", err)
	}
	defer rows.Close()

	out := []core.OperatingBudget{}
	for rows.Next() {
		b, err := scanOperating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operating budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListOperating(ctx context.Context, skip, limit int) ([]core.OperatingBudget, error) {
	return s.queryOperating(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET ORDER BY "ID" LIMIT ? OFFSET ?`,
		sqliteLimit(limit), skip)
}

func (s *SQLiteStore) SearchOperating(ctx context.Context, c filter.Criteria) ([]core.OperatingBudget, error) {
	query := `SELECT "ID", ` + operatingColumns + ` FROM OPERATING_BUDGET`
	where, args := c.Clause(filter.SQLite, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.queryOperating(ctx, query, args...)
}

func (s *SQLiteStore) ListOperatingLatestYear(ctx context.Context) ([]core.OperatingBudget, error) {
	return s.queryOperating(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET
		 WHERE "FISCAL_YEAR" = (SELECT MAX("FISCAL_YEAR") FROM OPERATING_BUDGET)
		 ORDER BY "ID"`)
}

func (s *SQLiteStore) UpdateOperating(ctx context.Context, id int64, b core.OperatingBudget) (core.OperatingBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE OPERATING_BUDGET SET
			"FISCAL_YEAR" = ?, "FUND_CODE" = ?, "PROGRAM_CODE" = ?, "ACCOUNT" = ?, "DEPTID" = ?,
			"OPERATING_UNIT" = ?, "CLASS" = ?, "PROJECT_ID" = ?, "BUDGET_AMOUNT" = ?, "DESCR" = ?
		 WHERE "ID" = ?`,
		b.FiscalYear, b.FundCode, b.ProgramCode, b.Account, b.DeptID,
		b.OperatingUnit, b.Class, b.ProjectID, b.BudgetAmount, b.Descr, id)
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("update operating budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.OperatingBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *SQLiteStore) DeleteOperating(ctx context.Context, id int64) (core.OperatingBudget, error) {
	b, err := s.GetOperating(ctx, id)
	if err != nil {
		return core.OperatingBudget{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM OPERATING_BUDGET WHERE "ID" = ?`, id); err != nil {
		return core.OperatingBudget{}, fmt.Errorf("delete operating budget: %w", err)
	}
	slog.InfoContext(ctx, "Operating budget deleted", "id", id)
	return b, nil
}

// ---- supplier ----

func (s *SQLiteStore) CreateSupplier(ctx context.Context, b core.SupplierBudget) (core.SupplierBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO SUPPLIER_BUDGET (`+supplierColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.VendorID, b.Descr, b.FiscalYear, b.FundCode, b.ProgramCode,
		b.Account, b.DeptID, b.OperatingUnit, b.ProjectID, b.BusinessUnit, b.Amount)
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("insert supplier budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	slog.InfoContext(ctx, "Supplier budget created", "id", b.ID, "fiscal_year", b.FiscalYear)
	return b, nil
}

func scanSupplier(row interface{ Scan(...any) error }) (core.SupplierBudget, error) {
	var b core.SupplierBudget
	var vendorID, descr, projectID, businessUnit sql.NullString
	err := row.Scan(&b.ID, &vendorID, &descr, &b.FiscalYear, &b.FundCode, &b.ProgramCode,
		&b.Account, &b.DeptID, &b.OperatingUnit, &projectID, &businessUnit, &b.Amount)
	if err != nil {
		return core.SupplierBudget{}, err
	}
	b.VendorID = nullableString(vendorID)
	b.Descr = nullableString(descr)
	b.ProjectID = nullableString(projectID)
	b.BusinessUnit = nullableString(businessUnit)
	return b, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *SQLiteStore) GetSupplier(ctx context.Context, id int64) (core.SupplierBudget, error) {
	b, err := scanSupplier(s.db.QueryRowContext(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET WHERE "ID" = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.SupplierBudget{}, ErrNotFound
	}
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("get supplier budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) querySupplier(ctx context.Context, query string, args ...any) ([]core.SupplierBudget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query supplier budgets: %w", err)
	}
	defer rows.Close()

	out := []core.SupplierBudget{}
	for rows.Next() {
		b, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSupplier(ctx context.Context, skip, limit int) ([]core.SupplierBudget, error) {
	return s.querySupplier(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET ORDER BY "ID" LIMIT ? OFFSET ?`,
		sqliteLimit(limit), skip)
}

func (s *SQLiteStore) SearchSupplier(ctx context.Context, c filter.Criteria) ([]core.SupplierBudget, error) {
	query := `SELECT "ID", ` + supplierColumns + ` FROM SUPPLIER_BUDGET`
	where, args := c.Clause(filter.SQLite, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.querySupplier(ctx, query, args...)
}

func (s *SQLiteStore) ListSupplierLatestYear(ctx context.Context) ([]core.SupplierBudget, error) {
	return s.querySupplier(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET
		 WHERE "FISCAL_YEAR" = (SELECT MAX("FISCAL_YEAR") FROM SUPPLIER_BUDGET)
		 ORDER BY "ID"`)
}

func (s *SQLiteStore) UpdateSupplier(ctx context.Context, id int64, b core.SupplierBudget) (core.SupplierBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE SUPPLIER_BUDGET SET
			"VENDOR_ID" = ?, "DESCR" = ?, "FISCAL_YEAR" = ?, "FUND_CODE" = ?, "PROGRAM_CODE" = ?,
			"ACCOUNT" = ?, "DEPTID" = ?, "OPERATING_UNIT" = ?, "PROJECT_ID" = ?, "BUSINESS_UNIT" = ?, "AMOUNT" = ?
		 WHERE "ID" = ?`,
		b.VendorID, b.Descr, b.FiscalYear, b.FundCode, b.ProgramCode,
		b.Account, b.DeptID, b.OperatingUnit, b.ProjectID, b.BusinessUnit, b.Amount, id)
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("update supplier budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.SupplierBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *SQLiteStore) DeleteSupplier(ctx context.Context, id int64) (core.SupplierBudget, error) {
	b, err := s.GetSupplier(ctx, id)
	if err != nil {
		return core.SupplierBudget{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM SUPPLIER_BUDGET WHERE "ID" = ?`, id); err != nil {
		return core.SupplierBudget{}, fmt.Errorf("delete supplier budget: %w", err)
	}
	slog.InfoContext(ctx, "Supplier budget deleted", "id", id)
	return b, nil
}

// ---- construction ----

func (s *SQLiteStore) CreateConstruction(ctx context.Context, b core.ConstructionBudget) (core.ConstructionBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO CONSTRUCTION_BUDGET (`+constructionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BudgetPeriod, b.FundCode, b.ProgramCode, b.ProjectID, b.ActivityID, b.LineDescr, b.MonetaryAmount)
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("insert construction budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	slog.InfoContext(ctx, "Construction budget created", "id", b.ID)
	return b, nil
}

func scanConstruction(row interface{ Scan(...any) error }) (core.ConstructionBudget, error) {
	var b core.ConstructionBudget
	var period, fund, program, project, activity, lineDescr sql.NullString
	var amount sql.NullFloat64
	err := row.Scan(&b.ID, &period, &fund, &program, &project, &activity, &lineDescr, &amount)
	if err != nil {
		return core.ConstructionBudget{}, err
	}
	b.BudgetPeriod = nullableString(period)
	b.FundCode = nullableString(fund)
	b.ProgramCode = nullableString(program)
	b.ProjectID = nullableString(project)
	b.ActivityID = nullableString(activity)
	b.LineDescr = nullableString(lineDescr)
	b.MonetaryAmount = nullableFloat(amount)
	return b, nil
}

func (s *SQLiteStore) GetConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error) {
	b, err := scanConstruction(s.db.QueryRowContext(ctx,
		`SELECT "ID", `+constructionColumns+` FROM CONSTRUCTION_BUDGET WHERE "ID" = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ConstructionBudget{}, ErrNotFound
	}
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("get construction budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) queryConstruction(ctx context.Context, query string, args ...any) ([]core.ConstructionBudget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query construction budgets: %w", err)
	}
	defer rows.Close()

	out := []core.ConstructionBudget{}
	for rows.Next() {
		b, err := scanConstruction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan construction budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListConstruction(ctx context.Context, skip, limit int) ([]core.ConstructionBudget, error) {
	return s.queryConstruction(ctx,
		`SELECT "ID", `+constructionColumns+` FROM CONSTRUCTION_BUDGET ORDER BY "ID" LIMIT ? OFFSET ?`,
		sqliteLimit(limit), skip)
}

func (s *SQLiteStore) SearchConstruction(ctx context.Context, c filter.Criteria) ([]core.ConstructionBudget, error) {
	query := `SELECT "ID", ` + constructionColumns + ` FROM CONSTRUCTION_BUDGET`
	where, args := c.Clause(filter.SQLite, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.queryConstruction(ctx, query, args...)
}

func (s *SQLiteStore) UpdateConstruction(ctx context.Context, id int64, b core.ConstructionBudget) (core.ConstructionBudget, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE CONSTRUCTION_BUDGET SET
			"BUDGET_PERIOD" = ?, "FUND_CODE" = ?, "PROGRAM_CODE" = ?, "PROJECT_ID" = ?,
			"ACTIVITY_ID" = ?, "LINE_DESCR" = ?, "MONETARY_AMOUNT" = ?
		 WHERE "ID" = ?`,
		b.BudgetPeriod, b.FundCode, b.ProgramCode, b.ProjectID, b.ActivityID, b.LineDescr, b.MonetaryAmount, id)
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("update construction budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ConstructionBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *SQLiteStore) DeleteConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error) {
	b, err := s.GetConstruction(ctx, id)
	if err != nil {
		return core.ConstructionBudget{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM CONSTRUCTION_BUDGET WHERE "ID" = ?`, id); err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("delete construction budget: %w", err)
	}
	slog.InfoContext(ctx, "Construction budget deleted", "id", id)
	return b, nil
}
