package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"budgetd/internal/core"
	"budgetd/internal/normalize"
)

// workbook builds an in-memory xlsx with the given header and data rows on
// the first worksheet.
func workbook(t *testing.T, headers []string, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestBuildPreviewNormalizes(t *testing.T) {
	buf := workbook(t,
		[]string{" Fiscal_Year ", "FUND_CODE", "Program_Code", "CLASS", "descr"},
		[][]string{
			{"2021", "1", "7", "CL600", "Initial"},
			{"2022", "12", "1234", "CL700"}, // short row: descr absent
		},
	)

	p, err := BuildPreview(buf, true)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	wantHeaders := []string{"fiscal_year", "fund_code", "program_code", "class_", "descr"}
	for i, h := range wantHeaders {
		if p.Headers[i] != h {
			t.Fatalf("header %d = %q, want %q", i, p.Headers[i], h)
		}
	}
	if len(p.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(p.Rows))
	}
	if p.Rows[0]["fund_code"] != "01" || p.Rows[0]["program_code"] != "0007" {
		t.Fatalf("codes not padded: %v", p.Rows[0])
	}
	if p.Rows[0]["class_"] != "CL600" {
		t.Fatalf("class not aliased: %v", p.Rows[0])
	}
	if v, ok := p.Rows[1]["descr"]; !ok || v != "" {
		t.Fatalf("absent cell should be empty string, got %q ok=%v", v, ok)
	}
	if p.Payload == "" {
		t.Fatal("payload must not be empty")
	}
}

func TestBuildPreviewNoAlias(t *testing.T) {
	buf := workbook(t, []string{"class", "fund_code"}, [][]string{{"x", "1"}})
	p, err := BuildPreview(buf, false)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if p.Headers[0] != "class" {
		t.Fatalf("class must keep its name without aliasing, got %q", p.Headers[0])
	}
}

func TestBuildPreviewMalformed(t *testing.T) {
	_, err := BuildPreview(bytes.NewReader([]byte("this is not a workbook")), true)
	if !errors.Is(err, ErrMalformedSpreadsheet) {
		t.Fatalf("expected ErrMalformedSpreadsheet, got %v", err)
	}
}

func TestConfirmCreatesInOrder(t *testing.T) {
	buf := workbook(t,
		[]string{"fiscal_year", "fund_code", "program_code", "account", "deptid", "operating_unit", "class", "project_id", "budget_amount", "descr"},
		[][]string{
			{"2021", "1", "7", "A1", "D1", "OU1", "CL1", "P1", "10.5", "first"},
			{"2022", "2", "8", "A2", "D2", "OU2", "CL2", "P2", "20.5", "second"},
		},
	)
	p, err := BuildPreview(buf, true)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	var nextID int64
	created, err := Confirm(context.Background(), []byte(p.Payload), true,
		normalize.OperatingFromRow,
		func(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error) {
			nextID++
			b.ID = nextID
			return b, nil
		})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}
	if created[0].Descr != "first" || created[1].Descr != "second" {
		t.Fatalf("input order not preserved: %v", created)
	}
	if created[0].FundCode != "01" || created[0].ProgramCode != "0007" {
		t.Fatalf("padding lost on confirm: %+v", created[0])
	}
}

func TestConfirmAbortsOnInvalidRowKeepingEarlierCreates(t *testing.T) {
	payload := []byte(`[
		{"fiscal_year":"2021","fund_code":"01","program_code":"0007","account":"A","deptid":"D","operating_unit":"OU","class":"CL","project_id":"P","budget_amount":"1.5","descr":"ok"},
		{"fiscal_year":"bad","fund_code":"01","program_code":"0007","account":"A","deptid":"D","operating_unit":"OU","class":"CL","project_id":"P","budget_amount":"1.5","descr":"broken"},
		{"fiscal_year":"2023","fund_code":"01","program_code":"0007","account":"A","deptid":"D","operating_unit":"OU","class":"CL","project_id":"P","budget_amount":"1.5","descr":"never reached"}
	]`)

	var calls int
	created, err := Confirm(context.Background(), payload, true,
		normalize.OperatingFromRow,
		func(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error) {
			calls++
			b.ID = int64(calls)
			return b, nil
		})

	var ve *normalize.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Row != 1 || ve.Field != "fiscal_year" {
		t.Fatalf("error = %+v, want row 1 fiscal_year", ve)
	}
	if len(created) != 1 || created[0].Descr != "ok" {
		t.Fatalf("first row must stay committed, got %v", created)
	}
	if calls != 1 {
		t.Fatalf("create called %d times, want 1", calls)
	}
}

func TestConfirmPropagatesStoreFailure(t *testing.T) {
	payload := []byte(`[
		{"fiscal_year":"2021","fund_code":"01","program_code":"0007","account":"A","deptid":"D","operating_unit":"OU","class":"CL","project_id":"P","budget_amount":"1.5","descr":"ok"}
	]`)
	boom := fmt.Errorf("store down")
	_, err := Confirm(context.Background(), payload, true,
		normalize.OperatingFromRow,
		func(ctx context.Context, b core.OperatingBudget) (core.OperatingBudget, error) {
			return b, boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store failure, got %v", err)
	}
}
