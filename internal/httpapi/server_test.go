package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

func newTestServer(t *testing.T, uiEnabled bool) (*Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "budgets.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(":0", store, nil, uiEnabled), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func validOperating() map[string]any {
	return map[string]any{
		"fiscal_year":    2021,
		"fund_code":      "FC100",
		"program_code":   "PC200",
		"account":        "AC300",
		"deptid":         "D400",
		"operating_unit": "OU500",
		"class":          "CL600",
		"project_id":     "PJ700",
		"budget_amount":  1000.50,
		"descr":          "Initial budget",
	}
}

func TestOperatingLifecycle(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := doJSON(t, s, http.MethodPost, "/budgets/", validOperating())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/budgets/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if got != created {
		t.Fatalf("get = %+v, want %+v", got, created)
	}

	update := validOperating()
	update["descr"] = "Updated budget"
	rec = doJSON(t, s, http.MethodPut, fmt.Sprintf("/budgets/%d", created.ID), update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	var updated core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Descr != "Updated budget" {
		t.Fatalf("descr = %q", updated.Descr)
	}
	if updated.FundCode != created.FundCode || updated.BudgetAmount != created.BudgetAmount {
		t.Fatalf("other fields changed: %+v", updated)
	}

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/budgets/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	var deleted core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode deleted: %v", err)
	}
	if deleted.Descr != "Updated budget" {
		t.Fatalf("deleted descr = %q", deleted.Descr)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/budgets/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Budget not found") {
		t.Fatalf("404 body = %s", rec.Body)
	}
}

func TestOperatingValidation(t *testing.T) {
	s, _ := newTestServer(t, true)

	payload := validOperating()
	payload["descr"] = ""
	rec := doJSON(t, s, http.MethodPost, "/budgets/", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "descr") {
		t.Fatalf("validation body should name the field, got %s", rec.Body)
	}
}

func TestNotFoundMessages(t *testing.T) {
	s, _ := newTestServer(t, true)

	tests := []struct {
		path string
		want string
	}{
		{"/budgets/999", "Budget not found"},
		{"/supplier_budgets/999", "SupplierBudget not found"},
		{"/construction_budgets/999", "ConstructionBudget not found"},
	}
	for _, tt := range tests {
		rec := doJSON(t, s, http.MethodGet, tt.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d", tt.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("GET %s body = %s, want %q", tt.path, rec.Body, tt.want)
		}
	}
}

func TestListPagination(t *testing.T) {
	s, _ := newTestServer(t, true)

	for i := 0; i < 5; i++ {
		payload := validOperating()
		payload["fiscal_year"] = 2020 + i
		if rec := doJSON(t, s, http.MethodPost, "/budgets/", payload); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/budgets/?skip=1&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var page []core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(page) != 2 || page[0].FiscalYear != 2021 {
		t.Fatalf("page = %+v", page)
	}
}

func TestSupplierCreateJSON(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := doJSON(t, s, http.MethodPost, "/supplier_budgets/", map[string]any{
		"vendor_id":      "V001",
		"fiscal_year":    "2022",
		"fund_code":      "10",
		"program_code":   "0042",
		"account":        "A1",
		"deptid":         "D1",
		"operating_unit": "OU1",
		"amount":         99.95,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var created core.SupplierBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.VendorID == nil || *created.VendorID != "V001" {
		t.Fatalf("vendor_id = %v", created.VendorID)
	}
	if created.ProjectID != nil {
		t.Fatalf("project_id should be null, got %v", created.ProjectID)
	}

	// oversize fund_code violates the fixed column width
	rec = doJSON(t, s, http.MethodPost, "/supplier_budgets/", map[string]any{
		"fiscal_year":    "2022",
		"fund_code":      "10000",
		"program_code":   "0042",
		"account":        "A1",
		"deptid":         "D1",
		"operating_unit": "OU1",
		"amount":         1.0,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("oversize fund_code status = %d", rec.Code)
	}
}

func TestOperatingIndexLatestYearDefault(t *testing.T) {
	s, _ := newTestServer(t, true)

	older := validOperating()
	older["fiscal_year"] = 2019
	older["descr"] = "old line"
	if rec := doJSON(t, s, http.MethodPost, "/budgets/", older); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	latest := validOperating()
	latest["descr"] = "current line"
	if rec := doJSON(t, s, http.MethodPost, "/budgets/", latest); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "current line") {
		t.Fatal("latest-year record missing from default view")
	}
	if strings.Contains(body, "old line") {
		t.Fatal("older fiscal year should not appear in default view")
	}
	if !strings.Contains(body, "<html") {
		t.Fatal("default view should be a full page")
	}
}

func TestOperatingIndexFilterFragment(t *testing.T) {
	s, _ := newTestServer(t, true)

	for _, year := range []int{2019, 201, 3012} {
		payload := validOperating()
		payload["fiscal_year"] = year
		payload["descr"] = fmt.Sprintf("line-%d", year)
		if rec := doJSON(t, s, http.MethodPost, "/budgets/", payload); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/?fiscal_year=201", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "line-2019") || !strings.Contains(body, "line-201") {
		t.Fatalf("expected year-substring matches, body %s", body)
	}
	if strings.Contains(body, "line-3012") {
		t.Fatal("3012 must not match the 201 substring filter")
	}
	if strings.Contains(body, "<html") {
		t.Fatal("filtered view should be a fragment")
	}
}

func TestNumericFilterParseSkip(t *testing.T) {
	s, _ := newTestServer(t, true)

	for i := 0; i < 3; i++ {
		payload := validOperating()
		payload["descr"] = fmt.Sprintf("row %d", i)
		if rec := doJSON(t, s, http.MethodPost, "/budgets/", payload); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/?budget_amount=abc", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for i := 0; i < 3; i++ {
		if !strings.Contains(rec.Body.String(), fmt.Sprintf("row %d", i)) {
			t.Fatalf("unparseable numeric filter should return all rows, body %s", rec.Body)
		}
	}
}

func TestDeleteHTMXReturnsEmptyFragment(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := doJSON(t, s, http.MethodPost, "/budgets/", validOperating())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created core.OperatingBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/budgets/%d", created.ID), nil)
	req.Header.Set("HX-Request", "true")
	del := httptest.NewRecorder()
	s.Handler.ServeHTTP(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}
	if del.Body.Len() != 0 {
		t.Fatalf("htmx delete body should be empty, got %s", del.Body)
	}
}

func TestOperatingFormCreate(t *testing.T) {
	s, _ := newTestServer(t, true)

	form := "fiscal_year=2021&fund_code=FC&program_code=PC&account=AC&deptid=D1&operating_unit=OU&class=CL&project_id=PJ&budget_amount=12.5&descr=from+form"
	req := httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "from form") {
		t.Fatalf("row fragment missing record, body %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "<tr") {
		t.Fatalf("expected a row fragment, body %s", rec.Body)
	}

	// missing required field renders a 422 error fragment
	req = httptest.NewRequest(http.MethodPost, "/budgets", strings.NewReader("fiscal_year=2021"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid form status = %d", rec.Code)
	}
}

func buildWorkbook(t *testing.T, headers []string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestBulkUploadPreview(t *testing.T) {
	s, _ := newTestServer(t, true)

	workbook := buildWorkbook(t,
		[]string{" Fiscal_Year ", "FUND_CODE", "program_code", "CLASS"},
		[][]string{{"2021", "1", "7", "CL1"}},
	)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.xlsx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(workbook); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/budgets/bulk_upload/preview", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body %s", rec.Code, rec.Body)
	}

	got := rec.Body.String()
	if !strings.Contains(got, "<td>01</td>") {
		t.Fatalf("fund_code should preview zero-padded, body %s", got)
	}
	if !strings.Contains(got, "<td>0007</td>") {
		t.Fatalf("program_code should preview zero-padded, body %s", got)
	}
	if !strings.Contains(got, "class_") {
		t.Fatalf("class header should preview aliased, body %s", got)
	}
	if !strings.Contains(got, "rows_json") {
		t.Fatal("preview must round-trip the payload")
	}
}

func TestBulkUploadPreviewMalformed(t *testing.T) {
	s, _ := newTestServer(t, true)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "upload.xlsx")
	part.Write([]byte("this is not a spreadsheet"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/budgets/bulk_upload/preview", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("malformed upload status = %d", rec.Code)
	}
}

func TestBulkUploadConfirm(t *testing.T) {
	s, store := newTestServer(t, true)

	rows := []map[string]string{
		{
			"fiscal_year": "2021", "fund_code": "01", "program_code": "0007",
			"account": "AC", "deptid": "D1", "operating_unit": "OU",
			"class": "CL1", "project_id": "PJ", "budget_amount": "10.5", "descr": "imported",
		},
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal rows: %v", err)
	}

	form := url.Values{"rows_json": {string(payload)}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/budgets/bulk_upload", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "imported") {
		t.Fatalf("confirm should render created rows, body %s", rec.Body)
	}

	// the class column lands on the record via the alias
	created, err := store.ListOperating(req.Context(), 0, 0)
	if err != nil {
		t.Fatalf("ListOperating: %v", err)
	}
	if len(created) != 1 || created[0].Class != "CL1" {
		t.Fatalf("created = %+v", created)
	}
}

func TestBulkUploadConfirmBadRow(t *testing.T) {
	s, store := newTestServer(t, true)

	rows := []map[string]string{
		{
			"fiscal_year": "2021", "fund_code": "01", "program_code": "0007",
			"account": "AC", "deptid": "D1", "operating_unit": "OU",
			"class": "CL1", "project_id": "PJ", "budget_amount": "10.5", "descr": "good row",
		},
		{
			"fiscal_year": "not a year", "fund_code": "01", "program_code": "0007",
			"account": "AC", "deptid": "D1", "operating_unit": "OU",
			"class": "CL1", "project_id": "PJ", "budget_amount": "10.5", "descr": "bad row",
		},
	}
	payload, _ := json.Marshal(rows)

	form := url.Values{"rows_json": {string(payload)}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/budgets/bulk_upload", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad row status = %d, body %s", rec.Code, rec.Body)
	}

	// the valid first row stays committed
	created, err := store.ListOperating(req.Context(), 0, 0)
	if err != nil {
		t.Fatalf("ListOperating: %v", err)
	}
	if len(created) != 1 || created[0].Descr != "good row" {
		t.Fatalf("created = %+v", created)
	}
}

func TestUIDisabled(t *testing.T) {
	s, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("index with UI disabled status = %d", rec.Code)
	}

	if rec := doJSON(t, s, http.MethodPost, "/budgets/", validOperating()); rec.Code != http.StatusCreated {
		t.Fatalf("JSON API should stay available, status = %d", rec.Code)
	}
}

func TestServiceEndpoints(t *testing.T) {
	s, _ := newTestServer(t, true)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := doJSON(t, s, http.MethodGet, "/budgets/", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
