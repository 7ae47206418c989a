package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetd/internal/amqp"
	"budgetd/internal/core"
	"budgetd/internal/sheets"
	"budgetd/internal/storage"
)

// Worksheet names, one per record kind.
const (
	OperatingSheet    = "Operating"
	SupplierSheet     = "Supplier"
	ConstructionSheet = "Construction"
)

// SyncWorker mirrors budget records to a spreadsheet. Individual changes
// arrive as AMQP messages and are appended as they come; a periodic
// snapshot rewrite reconciles anything a lost message left behind.
type SyncWorker struct {
	store     storage.Store
	sheets    sheets.RowWriter
	batchSize int
}

func NewSyncWorker(store storage.Store, sheets sheets.RowWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single record sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "kind", msg.Kind, "id", msg.ID)

	var (
		sheet string
		row   []any
		err   error
	)

	switch msg.Kind {
	case amqp.KindOperating:
		var b core.OperatingBudget
		if b, err = w.store.GetOperating(ctx, msg.ID); err == nil {
			sheet, row = OperatingSheet, operatingRow(b)
		}
	case amqp.KindSupplier:
		var b core.SupplierBudget
		if b, err = w.store.GetSupplier(ctx, msg.ID); err == nil {
			sheet, row = SupplierSheet, supplierRow(b)
		}
	case amqp.KindConstruction:
		var b core.ConstructionBudget
		if b, err = w.store.GetConstruction(ctx, msg.ID); err == nil {
			sheet, row = ConstructionSheet, constructionRow(b)
		}
	default:
		slog.WarnContext(ctx, "Unknown record kind in sync message", "kind", msg.Kind, "id", msg.ID)
		return nil
	}

	if errors.Is(err, storage.ErrNotFound) {
		// deleted before we got to it; the next snapshot drops it
		slog.WarnContext(ctx, "Record gone before sync, skipping", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record for sync: %w", err)
	}

	if err := w.sheets.Append(ctx, sheet, row); err != nil {
		return fmt.Errorf("append record to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Synced record to spreadsheet", "kind", msg.Kind, "id", msg.ID)
	return nil
}

// ExportSnapshot rewrites every worksheet from the store.
func (w *SyncWorker) ExportSnapshot(ctx context.Context) error {
	if err := w.exportOperating(ctx); err != nil {
		return err
	}
	if err := w.exportSupplier(ctx); err != nil {
		return err
	}
	return w.exportConstruction(ctx)
}

// Run exports a snapshot immediately and then on every tick until ctx
// is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.ExportSnapshot(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial snapshot export failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportSnapshot(ctx); err != nil {
				slog.ErrorContext(ctx, "Snapshot export failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) exportOperating(ctx context.Context) error {
	rows := [][]any{operatingHeader()}
	for skip := 0; ; skip += w.batchSize {
		page, err := w.store.ListOperating(ctx, skip, w.batchSize)
		if err != nil {
			return fmt.Errorf("list operating budgets: %w", err)
		}
		for _, b := range page {
			rows = append(rows, operatingRow(b))
		}
		if len(page) < w.batchSize {
			break
		}
	}
	if err := w.sheets.Replace(ctx, OperatingSheet, rows); err != nil {
		return fmt.Errorf("export operating budgets: %w", err)
	}
	slog.InfoContext(ctx, "Exported operating budgets", "rows", len(rows)-1)
	return nil
}

func (w *SyncWorker) exportSupplier(ctx context.Context) error {
	rows := [][]any{supplierHeader()}
	for skip := 0; ; skip += w.batchSize {
		page, err := w.store.ListSupplier(ctx, skip, w.batchSize)
		if err != nil {
			return fmt.Errorf("list supplier budgets: %w", err)
		}
		for _, b := range page {
			rows = append(rows, supplierRow(b))
		}
		if len(page) < w.batchSize {
			break
		}
	}
	if err := w.sheets.Replace(ctx, SupplierSheet, rows); err != nil {
		return fmt.Errorf("export supplier budgets: %w", err)
	}
	slog.InfoContext(ctx, "Exported supplier budgets", "rows", len(rows)-1)
	return nil
}

func (w *SyncWorker) exportConstruction(ctx context.Context) error {
	rows := [][]any{constructionHeader()}
	for skip := 0; ; skip += w.batchSize {
		page, err := w.store.ListConstruction(ctx, skip, w.batchSize)
		if err != nil {
			return fmt.Errorf("list construction budgets: %w", err)
		}
		for _, b := range page {
			rows = append(rows, constructionRow(b))
		}
		if len(page) < w.batchSize {
			break
		}
	}
	if err := w.sheets.Replace(ctx, ConstructionSheet, rows); err != nil {
		return fmt.Errorf("export construction budgets: %w", err)
	}
	slog.InfoContext(ctx, "Exported construction budgets", "rows", len(rows)-1)
	return nil
}

func operatingHeader() []any {
	return []any{"ID", "Fiscal Year", "Fund Code", "Program Code", "Account",
		"Dept ID", "Operating Unit", "Class", "Project ID", "Budget Amount", "Description"}
}

func operatingRow(b core.OperatingBudget) []any {
	return []any{b.ID, b.FiscalYear, b.FundCode, b.ProgramCode, b.Account,
		b.DeptID, b.OperatingUnit, b.Class, b.ProjectID, b.BudgetAmount, b.Descr}
}

func supplierHeader() []any {
	return []any{"ID", "Vendor ID", "Description", "Fiscal Year", "Fund Code",
		"Program Code", "Account", "Dept ID", "Operating Unit", "Project ID", "Business Unit", "Amount"}
}

func supplierRow(b core.SupplierBudget) []any {
	return []any{b.ID, optCell(b.VendorID), optCell(b.Descr), b.FiscalYear, b.FundCode,
		b.ProgramCode, b.Account, b.DeptID, b.OperatingUnit, optCell(b.ProjectID), optCell(b.BusinessUnit), b.Amount}
}

func constructionHeader() []any {
	return []any{"ID", "Budget Period", "Fund Code", "Program Code",
		"Project ID", "Activity ID", "Line Description", "Monetary Amount"}
}

func constructionRow(b core.ConstructionBudget) []any {
	return []any{b.ID, optCell(b.BudgetPeriod), optCell(b.FundCode), optCell(b.ProgramCode),
		optCell(b.ProjectID), optCell(b.ActivityID), optCell(b.LineDescr), optFloatCell(b.MonetaryAmount)}
}

func optCell(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func optFloatCell(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
