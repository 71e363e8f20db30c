package collections

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/batch"
	"CollectRecon/internal/checksum"
	"CollectRecon/internal/jobs"
	"CollectRecon/internal/schema"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentsCSV = "Acc No,Last Payment Amount,Last Payment Date\nA1,-150.00,20240115\nNOPE,10,20240115\n"

type stubRunner struct {
	res arrangement.SweepResult
	err error
}

func (s stubRunner) RunOnce(context.Context) (arrangement.SweepResult, error) { return s.res, s.err }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(map[string]interface{}{"time_zone": "UTC", "workers": 2}, Stores{}, nil)
	_, err := e.SeedAccount(context.Background(), "A1", "Jane", decimal.NewFromInt(1000))
	require.NoError(t, err)
	t.Cleanup(e.Stream.Stop)
	return e
}

func newTestRouter(e *Engine) *mux.Router {
	return NewRouter(e, jobs.NewCronService(nil, e.Arrangements))
}

func uploadRequest(t *testing.T, name, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/collections/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUploadSurvivesClientDisconnect(t *testing.T) {
	e := newTestEngine(t)
	r := newTestRouter(e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, body := serve(r, uploadRequest(t, "payments.csv", paymentsCSV, nil).WithContext(ctx))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", body["status"])
	assert.EqualValues(t, 1, body["applied_count"])

	acct, err := e.Ledger.FindAccountByNumber(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(850).Equal(acct.Balance), acct.Balance.String())
}

func TestUploadAppliesPaymentsAndRejectsDuplicate(t *testing.T) {
	e := newTestEngine(t)
	r := newTestRouter(e)

	rec, body := serve(r, uploadRequest(t, "payments.csv", paymentsCSV, map[string]string{"user_id": "agent7"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "completed", body["status"])
	assert.EqualValues(t, 2, body["records_count"])
	assert.EqualValues(t, 1, body["applied_count"])
	assert.EqualValues(t, 1, body["failed_count"])
	assert.Equal(t, "agent7", body["created_by"])
	assert.Equal(t, checksum.Fingerprint([]byte(paymentsCSV)), body["fingerprint"])
	batchID := body["batch_id"].(string)

	acct, err := e.Ledger.FindAccountByNumber(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(850).Equal(acct.Balance))

	rec, body = serve(r, uploadRequest(t, "renamed.csv", paymentsCSV, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, batchID, body["existing_batch_id"])
	assert.Contains(t, body["error"], "already been processed")

	acct, err = e.Ledger.FindAccountByNumber(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(850).Equal(acct.Balance))
}

func TestUploadRejectsBadRequests(t *testing.T) {
	r := newTestRouter(newTestEngine(t))

	tests := []struct {
		name     string
		file     string
		body     string
		wantCode int
	}{
		{"missing file", "", "", http.StatusBadRequest},
		{"unsupported format", "statement.pdf", "%PDF-1.4", http.StatusBadRequest},
		{"empty file", "empty.csv", "", http.StatusBadRequest},
		{"header only", "header.csv", "Acc No,Amount\n", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(r, uploadRequest(t, tt.file, tt.body, nil))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestAsyncUploadCompletesInBackground(t *testing.T) {
	e := newTestEngine(t)
	r := newTestRouter(e)

	rec, body := serve(r, uploadRequest(t, "p.csv", paymentsCSV, map[string]string{"async": "true"}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", body["status"])
	id := body["batch_id"].(string)

	require.Eventually(t, func() bool {
		b, err := e.Batches.Get(context.Background(), id)
		return err == nil && b.Status == batch.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec, body = serve(r, httptest.NewRequest(http.MethodGet, "/collections/uploads/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["applied_count"])

	rec, _ = serve(r, httptest.NewRequest(http.MethodGet, "/collections/uploads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBatchesPaginates(t *testing.T) {
	e := newTestEngine(t)
	r := newTestRouter(e)
	for i, amt := range []string{"1", "2", "3"} {
		rec, _ := serve(r, uploadRequest(t, "p.csv", "Acc No,Last Payment Amount\nA1,"+amt+"\n", nil))
		require.Equal(t, http.StatusOK, rec.Code, "upload %d", i)
	}

	rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/collections/uploads?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["rows"], 1)
	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total_records"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	rec, _ = serve(r, httptest.NewRequest(http.MethodGet, "/collections/uploads?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckDuplicateHandler(t *testing.T) {
	r := newTestRouter(newTestEngine(t))

	rec, body := serve(r, jsonRequest(http.MethodPost, "/collections/uploads/check", `{"fingerprint":"abc"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	fp := checksum.Fingerprint([]byte(paymentsCSV))
	rec, body = serve(r, jsonRequest(http.MethodPost, "/collections/uploads/check", `{"fingerprint":"`+fp+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["exists"])

	rec, _ = serve(r, uploadRequest(t, "p.csv", paymentsCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = serve(r, jsonRequest(http.MethodPost, "/collections/uploads/check", `{"fingerprint":"`+strings.ToUpper(fp)+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["exists"])
	assert.NotEmpty(t, body["existing_batch_id"])
}

func TestArrangementLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(newTestEngine(t))

	rec, body := serve(r, jsonRequest(http.MethodPost, "/collections/arrangements",
		`{"account_number":"A1","amount":"250.00","promised_date":"2024-02-01","user_id":"agent7"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := body["arrangement"].(map[string]interface{})
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "agent7", created["created_by"])
	id := created["id"].(string)

	rec, body = serve(r, httptest.NewRequest(http.MethodGet, "/collections/arrangements/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["arrangement"].(map[string]interface{})["id"])

	rec, body = serve(r, httptest.NewRequest(http.MethodGet, "/collections/accounts/A1/arrangements", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["rows"], 1)

	rec, body = serve(r, httptest.NewRequest(http.MethodPost, "/collections/arrangements/"+id+"/paid", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paid", body["arrangement"].(map[string]interface{})["status"])

	rec, _ = serve(r, httptest.NewRequest(http.MethodPost, "/collections/arrangements/"+id+"/paid", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = serve(r, httptest.NewRequest(http.MethodPost, "/collections/arrangements/missing/paid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateArrangementValidation(t *testing.T) {
	r := newTestRouter(newTestEngine(t))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing account", `{"amount":"10","promised_date":"2024-02-01"}`, http.StatusBadRequest},
		{"bad date", `{"account_number":"A1","amount":"10","promised_date":"01/02/2024"}`, http.StatusBadRequest},
		{"zero amount", `{"account_number":"A1","amount":"0","promised_date":"2024-02-01"}`, http.StatusBadRequest},
		{"unknown account", `{"account_number":"ZZ","amount":"10","promised_date":"2024-02-01"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(r, jsonRequest(http.MethodPost, "/collections/arrangements", tt.body))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestSweepHandler(t *testing.T) {
	e := newTestEngine(t)

	rec, body := serve(NewRouter(e, stubRunner{res: arrangement.SweepResult{Scanned: 3, Transitioned: 2, Failed: 1}}),
		httptest.NewRequest(http.MethodPost, "/collections/arrangements/sweep", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["transitioned"])

	rec, body = serve(NewRouter(e, stubRunner{err: jobs.ErrSweepRunning}),
		httptest.NewRequest(http.MethodPost, "/collections/arrangements/sweep", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestTemplateHandler(t *testing.T) {
	r := newTestRouter(newTestEngine(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/collections/template", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "collections_template.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), schema.TemplateHeaders()[0]))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/collections/template?format=xlsx", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/collections/template?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityFeedAndHealth(t *testing.T) {
	e := newTestEngine(t)
	r := newTestRouter(e)

	rec, _ := serve(r, uploadRequest(t, "p.csv", paymentsCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := serve(r, httptest.NewRequest(http.MethodGet, "/collections/activity?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["rows"].([]interface{})
	require.Len(t, rows, 1)
	ev := rows[0].(map[string]interface{})
	assert.Equal(t, "payment_applied", ev["type"])
	assert.Equal(t, "A1", ev["account_number"])
	assert.Equal(t, "2024/01/15", ev["date"])

	rec, _ = serve(r, httptest.NewRequest(http.MethodGet, "/collections/activity?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = serve(r, httptest.NewRequest(http.MethodGet, "/collections/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = serve(r, httptest.NewRequest(http.MethodDelete, "/collections/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
