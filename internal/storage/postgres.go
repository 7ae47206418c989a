package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgetd/internal/core"
	"budgetd/internal/filter"
)

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at url, runs the embedded
// migrations, and returns a ready store.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	if err := runPostgresMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func pgLimitClause(skip, limit, argOffset int) (string, []any) {
	if limit <= 0 {
		return fmt.Sprintf(" OFFSET $%d", argOffset+1), []any{skip}
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argOffset+1, argOffset+2), []any{limit, skip}
}

// ---- operating ----

func (s *PostgresStore) CreateOperating(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO OPERATING_BUDGET (`+operatingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING "ID"`,
		b.FiscalYear, b.FundCode, b.ProgramCode, b.Account, b.DeptID,
		b.OperatingUnit, b.Class, b.ProjectID, b.BudgetAmount, b.Descr).Scan(&b.ID)
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("insert operating budget: %w", err)
	}
	slog.InfoContext(ctx, "Operating budget created", "id", b.ID, "fiscal_year", b.FiscalYear)
	return b, nil
}

func (s *PostgresStore) GetOperating(ctx context.Context, id int64) (core.OperatingBudget, error) {
	var b core.OperatingBudget
	err := s.pool.QueryRow(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET WHERE "ID" = $1`, id).
		Scan(&b.ID, &b.FiscalYear, &b.FundCode, &b.ProgramCode, &b.Account,
			&b.DeptID, &b.OperatingUnit, &b.Class, &b.ProjectID, &b.BudgetAmount, &b.Descr)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.OperatingBudget{}, ErrNotFound
	}
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("get operating budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) queryOperating(ctx context.Context, query string, args ...any) ([]core.OperatingBudget, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operating budgets: %w", err)
	}
	defer rows.Close()

	out := []core.OperatingBudget{}
	for rows.Next() {
		var b core.OperatingBudget
		if err := rows.Scan(&b.ID, &b.FiscalYear, &b.FundCode, &b.ProgramCode, &b.Account,
			&b.DeptID, &b.OperatingUnit, &b.Class, &b.ProjectID, &b.BudgetAmount, &b.Descr); err != nil {
			return nil, fmt.Errorf("scan operating budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOperating(ctx context.Context, skip, limit int) ([]core.OperatingBudget, error) {
	clause, args := pgLimitClause(skip, limit, 0)
	return s.queryOperating(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET ORDER BY "ID"`+clause, args...)
}

func (s *PostgresStore) SearchOperating(ctx context.Context, c filter.Criteria) ([]core.OperatingBudget, error) {
	query := `SELECT "ID", ` + operatingColumns + ` FROM OPERATING_BUDGET`
	where, args := c.Clause(filter.Postgres, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.queryOperating(ctx, query, args...)
}

func (s *PostgresStore) ListOperatingLatestYear(ctx context.Context) ([]core.OperatingBudget, error) {
	return s.queryOperating(ctx,
		`SELECT "ID", `+operatingColumns+` FROM OPERATING_BUDGET
		 WHERE "FISCAL_YEAR" = (SELECT MAX("FISCAL_YEAR") FROM OPERATING_BUDGET)
		 ORDER BY "ID"`)
}

func (s *PostgresStore) UpdateOperating(ctx context.Context, id int64, b core.OperatingBudget) (core.OperatingBudget, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE OPERATING_BUDGET SET
			"FISCAL_YEAR" = $1, "FUND_CODE" = $2, "PROGRAM_CODE" = $3, "ACCOUNT" = $4, "DEPTID" = $5,
			"OPERATING_UNIT" = $6, "CLASS" = $7, "PROJECT_ID" = $8, "BUDGET_AMOUNT" = $9, "DESCR" = $10
		 WHERE "ID" = $11`,
		b.FiscalYear, b.FundCode, b.ProgramCode, b.Account, b.DeptID,
		b.OperatingUnit, b.Class, b.ProjectID, b.BudgetAmount, b.Descr, id)
	if err != nil {
		return core.OperatingBudget{}, fmt.Errorf("update operating budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.OperatingBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *PostgresStore) DeleteOperating(ctx context.Context, id int64) (core.OperatingBudget, error) {
	b, err := s.GetOperating(ctx, id)
	if err != nil {
		return core.OperatingBudget{}, err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM OPERATING_BUDGET WHERE "ID" = $1`, id); err != nil {
		return core.OperatingBudget{}, fmt.Errorf("delete operating budget: %w", err)
	}
	slog.InfoContext(ctx, "Operating budget deleted", "id", id)
	return b, nil
}

// ---- supplier ----

func (s *PostgresStore) CreateSupplier(ctx context.Context, b core.SupplierBudget) (core.SupplierBudget, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO SUPPLIER_BUDGET (`+supplierColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING "ID"`,
		b.VendorID, b.Descr, b.FiscalYear, b.FundCode, b.ProgramCode,
		b.Account, b.DeptID, b.OperatingUnit, b.ProjectID, b.BusinessUnit, b.Amount).Scan(&b.ID)
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("insert supplier budget: %w", err)
	}
	slog.InfoContext(ctx, "Supplier budget created", "id", b.ID, "fiscal_year", b.FiscalYear)
	return b, nil
}

func (s *PostgresStore) scanSupplierRow(row pgx.Row) (core.SupplierBudget, error) {
	var b core.SupplierBudget
	err := row.Scan(&b.ID, &b.VendorID, &b.Descr, &b.FiscalYear, &b.FundCode, &b.ProgramCode,
		&b.Account, &b.DeptID, &b.OperatingUnit, &b.ProjectID, &b.BusinessUnit, &b.Amount)
	return b, err
}

func (s *PostgresStore) GetSupplier(ctx context.Context, id int64) (core.SupplierBudget, error) {
	b, err := s.scanSupplierRow(s.pool.QueryRow(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET WHERE "ID" = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.SupplierBudget{}, ErrNotFound
	}
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("get supplier budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) querySupplier(ctx context.Context, query string, args ...any) ([]core.SupplierBudget, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query supplier budgets: %w", err)
	}
	defer rows.Close()

	out := []core.SupplierBudget{}
	for rows.Next() {
		b, err := s.scanSupplierRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListSupplier(ctx context.Context, skip, limit int) ([]core.SupplierBudget, error) {
	clause, args := pgLimitClause(skip, limit, 0)
	return s.querySupplier(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET ORDER BY "ID"`+clause, args...)
}

func (s *PostgresStore) SearchSupplier(ctx context.Context, c filter.Criteria) ([]core.SupplierBudget, error) {
	query := `SELECT "ID", ` + supplierColumns + ` FROM SUPPLIER_BUDGET`
	where, args := c.Clause(filter.Postgres, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.querySupplier(ctx, query, args...)
}

func (s *PostgresStore) ListSupplierLatestYear(ctx context.Context) ([]core.SupplierBudget, error) {
	return s.querySupplier(ctx,
		`SELECT "ID", `+supplierColumns+` FROM SUPPLIER_BUDGET
		 WHERE "FISCAL_YEAR" = (SELECT MAX("FISCAL_YEAR") FROM SUPPLIER_BUDGET)
		 ORDER BY "ID"`)
}

func (s *PostgresStore) UpdateSupplier(ctx context.Context, id int64, b core.SupplierBudget) (core.SupplierBudget, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE SUPPLIER_BUDGET SET
			"VENDOR_ID" = $1, "DESCR" = $2, "FISCAL_YEAR" = $3, "FUND_CODE" = $4, "PROGRAM_CODE" = $5,
			"ACCOUNT" = $6, "DEPTID" = $7, "OPERATING_UNIT" = $8, "PROJECT_ID" = $9, "BUSINESS_UNIT" = $10, "AMOUNT" = $11
		 WHERE "ID" = $12`,
		b.VendorID, b.Descr, b.FiscalYear, b.FundCode, b.ProgramCode,
		b.Account, b.DeptID, b.OperatingUnit, b.ProjectID, b.BusinessUnit, b.Amount, id)
	if err != nil {
		return core.SupplierBudget{}, fmt.Errorf("update supplier budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.SupplierBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *PostgresStore) DeleteSupplier(ctx context.Context, id int64) (core.SupplierBudget, error) {
	b, err := s.GetSupplier(ctx, id)
	if err != nil {
		return core.SupplierBudget{}, err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM SUPPLIER_BUDGET WHERE "ID" = $1`, id); err != nil {
		return core.SupplierBudget{}, fmt.Errorf("delete supplier budget: %w", err)
	}
	slog.InfoContext(ctx, "Supplier budget deleted", "id", id)
	return b, nil
}

// ---- construction ----

func (s *PostgresStore) CreateConstruction(ctx context.Context, b core.ConstructionBudget) (core.ConstructionBudget, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO CONSTRUCTION_BUDGET (`+constructionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "ID"`,
		b.BudgetPeriod, b.FundCode, b.ProgramCode, b.ProjectID, b.ActivityID, b.LineDescr, b.MonetaryAmount).Scan(&b.ID)
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("insert construction budget: %w", err)
	}
	slog.InfoContext(ctx, "Construction budget created", "id", b.ID)
	return b, nil
}

func (s *PostgresStore) scanConstructionRow(row pgx.Row) (core.ConstructionBudget, error) {
	var b core.ConstructionBudget
	err := row.Scan(&b.ID, &b.BudgetPeriod, &b.FundCode, &b.ProgramCode,
		&b.ProjectID, &b.ActivityID, &b.LineDescr, &b.MonetaryAmount)
	return b, err
}

func (s *PostgresStore) GetConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error) {
	b, err := s.scanConstructionRow(s.pool.QueryRow(ctx,
		`SELECT "ID", `+constructionColumns+` FROM CONSTRUCTION_BUDGET WHERE "ID" = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ConstructionBudget{}, ErrNotFound
	}
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("get construction budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) queryConstruction(ctx context.Context, query string, args ...any) ([]core.ConstructionBudget, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query construction budgets: %w", err)
	}
	defer rows.Close()

	out := []core.ConstructionBudget{}
	for rows.Next() {
		b, err := s.scanConstructionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan construction budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListConstruction(ctx context.Context, skip, limit int) ([]core.ConstructionBudget, error) {
	clause, args := pgLimitClause(skip, limit, 0)
	return s.queryConstruction(ctx,
		`SELECT "ID", `+constructionColumns+` FROM CONSTRUCTION_BUDGET ORDER BY "ID"`+clause, args...)
}

func (s *PostgresStore) SearchConstruction(ctx context.Context, c filter.Criteria) ([]core.ConstructionBudget, error) {
	query := `SELECT "ID", ` + constructionColumns + ` FROM CONSTRUCTION_BUDGET`
	where, args := c.Clause(filter.Postgres, 0)
	if where != "" {
		query += " WHERE " + where
	}
	query += ` ORDER BY "ID"`
	return s.queryConstruction(ctx, query, args...)
}

func (s *PostgresStore) UpdateConstruction(ctx context.Context, id int64, b core.ConstructionBudget) (core.ConstructionBudget, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE CONSTRUCTION_BUDGET SET
			"BUDGET_PERIOD" = $1, "FUND_CODE" = $2, "PROGRAM_CODE" = $3, "PROJECT_ID" = $4,
			"ACTIVITY_ID" = $5, "LINE_DESCR" = $6, "MONETARY_AMOUNT" = $7
		 WHERE "ID" = $8`,
		b.BudgetPeriod, b.FundCode, b.ProgramCode, b.ProjectID, b.ActivityID, b.LineDescr, b.MonetaryAmount, id)
	if err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("update construction budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ConstructionBudget{}, ErrNotFound
	}
	b.ID = id
	return b, nil
}

func (s *PostgresStore) DeleteConstruction(ctx context.Context, id int64) (core.ConstructionBudget, error) {
	b, err := s.GetConstruction(ctx, id)
	if err != nil {
		return core.ConstructionBudget{}, err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM CONSTRUCTION_BUDGET WHERE "ID" = $1`, id); err != nil {
		return core.ConstructionBudget{}, fmt.Errorf("delete construction budget: %w", err)
	}
	slog.InfoContext(ctx, "Construction budget deleted", "id", id)
	return b, nil
}
