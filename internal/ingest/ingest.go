// Package ingest implements the two-phase spreadsheet bulk-upload workflow:
// preview parses an uploaded workbook into normalized string rows without
// type-checking them, and confirm turns the round-tripped rows into validated
// records committed one create at a time.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"budgetd/internal/normalize"
)

// ErrMalformedSpreadsheet marks an upload that cannot be read as tabular data.
var ErrMalformedSpreadsheet = errors.New("malformed spreadsheet")

// Preview is the phase-1 result: ordered headers, normalized rows for human
// review, and the opaque JSON payload the client round-trips to confirm.
type Preview struct {
	Headers []string
	Rows    []normalize.Row
	Payload string
}

// BuildPreview reads the first worksheet of an xlsx upload with every cell as
// a string, normalizes headers and codes, and fills absent cells with "".
// Types are not validated at this phase. aliasClass renames the `class`
// column for rows destined for the operating table.
func BuildPreview(r io.Reader, aliasClass bool) (*Preview, error) {
	headers, cells, err := readWorkbook(r)
	if err != nil {
		return nil, err
	}

	headers = normalize.Headers(headers)
	if aliasClass {
		headers = normalize.AliasClassHeader(headers)
	}

	rows := make([]normalize.Row, 0, len(cells))
	for _, line := range cells {
		row := make(normalize.Row, len(headers))
		for i, h := range headers {
			if i < len(line) {
				row[h] = line[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, normalize.PadCodes(row))
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode preview payload: %w", err)
	}

	return &Preview{Headers: headers, Rows: rows, Payload: string(payload)}, nil
}

// readWorkbook extracts the header line and data lines from the first
// worksheet. Any parse failure is reported as ErrMalformedSpreadsheet.
func readWorkbook(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: no worksheets", ErrMalformedSpreadsheet)
	}

	lines, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: empty worksheet", ErrMalformedSpreadsheet)
	}

	return lines[0], lines[1:], nil
}

// Confirm deserializes the phase-1 payload and commits each row with its own
// create call. Rows are independent: records created before a failing row
// stay committed, and the failure aborts the remaining rows. The returned
// slice holds the successfully created records in input order, also when err
// is non-nil.
func Confirm[T any](
	ctx context.Context,
	payload []byte,
	aliasClass bool,
	build func(idx int, row normalize.Row) (T, error),
	create func(ctx context.Context, rec T) (T, error),
) ([]T, error) {
	var rows []normalize.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode confirm payload: %w", err)
	}

	created := make([]T, 0, len(rows))
	for i, row := range rows {
		if aliasClass {
			row = normalize.AliasClass(row)
		}
		row = normalize.PadCodes(row)

		rec, err := build(i, row)
		if err != nil {
			return created, err
		}
		saved, err := create(ctx, rec)
		if err != nil {
			return created, fmt.Errorf("create row %d: %w", i, err)
		}
		created = append(created, saved)
	}
	return created, nil
}
