package sheets

import "context"

// RowWriter is the outbound port for spreadsheet export.
type RowWriter interface {
	// Append adds a single row to the named worksheet.
	Append(ctx context.Context, sheet string, row []any) error
	// Replace rewrites the named worksheet with the given rows,
	// header included.
	Replace(ctx context.Context, sheet string, rows [][]any) error
}
