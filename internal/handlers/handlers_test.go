package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/diewo77/go-garage/internal/auth"
	"github.com/diewo77/go-garage/internal/export"
	"github.com/diewo77/go-garage/internal/jobsheet"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/view"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubEngine struct{ err error }

func (e stubEngine) WritePDF(_ context.Context, s jobsheet.Sheet, _ []byte, dst string) error {
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(dst, []byte("%PDF-stub "+s.VehicleReg), 0o600)
}

type testServer struct {
	mux     *http.ServeMux
	jobs    *services.JobService
	inv     *services.InventoryService
	sheets  *jobsheet.Renderer
	tempDir string
}

func setupHandlersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := setupHandlersTestDB(t)
	m := metrics.New()
	jobs := services.NewJobService(db, services.WithMetrics(m))
	inv := services.NewInventoryService(db, services.WithMetrics(m))
	v := view.New(view.Config{Dir: "../../templates", Defaults: map[string]any{"GarageName": "Test Garage"}})
	tmp := t.TempDir()
	sheets := &jobsheet.Renderer{Engine: stubEngine{}, TempDir: tmp}

	jh := NewJobHandler(jobs, inv, v)
	ih := NewInventoryHandler(inv, v)
	sh := NewJobSheetHandler(jobs, sheets, m, "Test Garage")
	eh := NewExportHandler(jobs, inv)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", NewHomeHandler(v).Index)
	mux.HandleFunc("GET /admin/jobs", jh.List)
	mux.HandleFunc("GET /admin/jobs/new", jh.New)
	mux.HandleFunc("GET /admin/jobs/export.xlsx", eh.Jobs)
	mux.HandleFunc("POST /admin/jobs", jh.Create)
	mux.HandleFunc("GET /admin/jobs/{id}", jh.Show)
	mux.HandleFunc("POST /admin/jobs/{id}", jh.Update)
	mux.HandleFunc("POST /admin/jobs/{id}/delete", jh.Delete)
	mux.HandleFunc("POST /admin/jobs/{id}/services", jh.AddService)
	mux.HandleFunc("POST /admin/jobs/{id}/services/{sid}", jh.UpdateService)
	mux.HandleFunc("POST /admin/jobs/{id}/services/{sid}/delete", jh.DeleteService)
	mux.HandleFunc("POST /admin/jobs/{id}/payments", jh.AddPayment)
	mux.HandleFunc("POST /admin/jobs/{id}/payments/{pid}", jh.UpdatePayment)
	mux.HandleFunc("POST /admin/jobs/{id}/payments/{pid}/delete", jh.DeletePayment)
	mux.HandleFunc("GET /admin/inventory", ih.List)
	mux.HandleFunc("GET /admin/inventory/new", ih.New)
	mux.HandleFunc("GET /admin/inventory/export.xlsx", eh.Inventory)
	mux.HandleFunc("POST /admin/inventory", ih.Create)
	mux.HandleFunc("GET /admin/inventory/{id}", ih.Show)
	mux.HandleFunc("POST /admin/inventory/{id}", ih.Update)
	mux.HandleFunc("POST /admin/inventory/{id}/delete", ih.Delete)
	mux.HandleFunc("POST /admin/inventory/{id}/stock", ih.AdjustStock)
	mux.HandleFunc("GET /print-jobsheet/{id}/{$}", sh.PDF)
	mux.HandleFunc("GET /jobs/{id}/sheet", sh.Preview)

	return &testServer{mux: mux, jobs: jobs, inv: inv, sheets: sheets, tempDir: tmp}
}

func (s *testServer) do(t *testing.T, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, r)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	return r
}

func getJSON(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Accept", "application/json")
	return r
}

func (s *testServer) createJob(t *testing.T) *models.Job {
	t.Helper()
	job, err := s.jobs.CreateJob(context.Background(), services.JobInput{CustomerName: "Ravi", VehicleReg: "KA05AJ6807"})
	require.NoError(t, err)
	return job
}

func (s *testServer) addService(t *testing.T, jobID uint, labour string) {
	t.Helper()
	_, err := s.jobs.AddService(context.Background(), jobID, services.ServiceInput{
		Name: "Inspection", Quantity: 1, LabourCost: mustDec(labour),
	})
	require.NoError(t, err)
}

func emptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome to Test Garage")

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobFormNormalizesRegistration(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, postForm("/admin/jobs", url.Values{
		"customer_name": {"Ravi"},
		"vehicle_reg":   {"ka 05 aj 6807"},
		"status":        {"Pending"},
		"date_in":       {"2024-04-01T09:30"},
	}))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/admin/jobs/"), loc)

	w = s.do(t, httptest.NewRequest(http.MethodGet, loc, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "KA-05-AJ-6807")
	assert.Contains(t, w.Body.String(), "Change job #")
}

func TestCreateJobRejectsBadRegistration(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, postForm("/admin/jobs", url.Values{
		"customer_name": {"Ravi"},
		"vehicle_reg":   {"KA95AJ6807"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "XX-00-XX-0000")
	assert.Contains(t, w.Body.String(), `value="KA95AJ6807"`)

	_, n, err := s.jobs.ListJobs(context.Background(), services.JobFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateJobRejectsBadDate(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, postForm("/admin/jobs", url.Values{
		"customer_name": {"Ravi"},
		"vehicle_reg":   {"KA05AJ6807"},
		"date_in":       {"yesterday"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid date format. Please enter a valid date.")
}

func TestJobJSONPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, postJSON("/admin/jobs", `{"customer_name":"Ravi","vehicle_reg":"KA05AJ6807"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID         uint   `json:"id"`
		VehicleReg string `json:"vehicle_reg"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "KA-05-AJ-6807", created.VehicleReg)
	base := fmt.Sprintf("/admin/jobs/%d", created.ID)

	w = s.do(t, postJSON(base+"/payments", `{"amount":"10"}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"validation_failed","details":{"amount":"no amount due"}}`, w.Body.String())

	w = s.do(t, postJSON(base+"/services", `{"name":"Brake job","quantity":1,"labour_cost":"100"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, postJSON(base+"/payments", `{"amount":"150"}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "payment exceeds total due: 100.00")

	w = s.do(t, postJSON(base+"/payments", `{"amount":"40"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, getJSON(base))
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		PaymentStatus string `json:"payment_status"`
		Summary       struct {
			Status string `json:"payment_status"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "partially_paid", got.PaymentStatus)
	assert.Equal(t, "partially_paid", got.Summary.Status)

	w = s.do(t, postJSON(base+"/payments", `{"amount":"60"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	job, err := s.jobs.GetJob(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FullyPaid, job.PaymentStatus)
}

func TestPaymentFormRejectionRerendersJobPage(t *testing.T) {
	s := newTestServer(t)
	job := s.createJob(t)
	s.addService(t, job.ID, "50")

	w := s.do(t, postForm(fmt.Sprintf("/admin/jobs/%d/payments", job.ID), url.Values{"amount": {"75"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "payment exceeds total due: 50.00")
	assert.Contains(t, body, `value="75"`)

	w = s.do(t, postForm(fmt.Sprintf("/admin/jobs/%d/payments", job.ID), url.Values{"amount": {"abc"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "must be a number")
}

func TestServiceAndPaymentEditsRedirect(t *testing.T) {
	s := newTestServer(t)
	job := s.createJob(t)
	base := fmt.Sprintf("/admin/jobs/%d", job.ID)

	w := s.do(t, postForm(base+"/services", url.Values{"name": {"Tyres"}, "quantity": {"1"}, "labour_cost": {"80"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, base, w.Header().Get("Location"))

	job, err := s.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, job.Services, 1)
	sid := job.Services[0].ID

	w = s.do(t, postForm(base+"/payments", url.Values{"amount": {"80"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	job, err = s.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, job.Payments, 1)
	assert.Equal(t, models.FullyPaid, job.PaymentStatus)
	pid := job.Payments[0].ID

	w = s.do(t, postForm(fmt.Sprintf("%s/services/%d", base, sid), url.Values{"name": {"Tyres"}, "quantity": {"1"}, "labour_cost": {"100"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	job, err = s.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PartiallyPaid, job.PaymentStatus)

	w = s.do(t, postForm(fmt.Sprintf("%s/payments/%d", base, pid), url.Values{"amount": {"100"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = s.do(t, postForm(fmt.Sprintf("%s/services/%d/delete", base, sid), nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(t, postForm(fmt.Sprintf("%s/payments/%d/delete", base, pid), nil))
	require.Equal(t, http.StatusSeeOther, w.Code)

	job, err = s.jobs.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, job.Services)
	assert.Empty(t, job.Payments)
	assert.Equal(t, models.NotPaid, job.PaymentStatus)

	w = s.do(t, postForm(base+"/delete", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobListFiltersAndSearch(t *testing.T) {
	s := newTestServer(t)
	paid := s.createJob(t)
	s.addService(t, paid.ID, "20")
	_, err := s.jobs.AddPayment(context.Background(), paid.ID, services.PaymentInput{Amount: mustDec("20")})
	require.NoError(t, err)
	_, err = s.jobs.CreateJob(context.Background(), services.JobInput{CustomerName: "Meera", VehicleReg: "TN10BZ1234"})
	require.NoError(t, err)

	w := s.do(t, getJSON("/admin/jobs?payment_status=fully_paid"))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Jobs []struct {
			CustomerName string `json:"customer_name"`
		} `json:"jobs"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Ravi", list.Jobs[0].CustomerName)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/jobs?q=tn-10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Meera")
	assert.NotContains(t, body, "Ravi")
	assert.Contains(t, body, "By Payment Status")
}

func TestUnknownJobIs404(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/admin/jobs/999", "/print-jobsheet/999/", "/jobs/999/sheet", "/admin/jobs/abc"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := s.do(t, postJSON("/admin/jobs/999/payments", `{"amount":"5"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobSheetPDF(t *testing.T) {
	s := newTestServer(t)
	job := s.createJob(t)
	s.addService(t, job.ID, "30")

	w := s.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/print-jobsheet/%d/", job.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf(`attachment; filename="jobsheet_%d.pdf"`, job.ID), w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-stub KA-05-AJ-6807", w.Body.String())
	emptyDir(t, s.tempDir)
}

func TestJobSheetEngineFailure(t *testing.T) {
	s := newTestServer(t)
	job := s.createJob(t)
	s.sheets.Engine = stubEngine{err: errors.New("engine crashed")}

	w := s.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/print-jobsheet/%d/", job.ID), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	emptyDir(t, s.tempDir)
}

func TestJobSheetPreview(t *testing.T) {
	s := newTestServer(t)
	job := s.createJob(t)
	w := s.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/jobs/%d/sheet", job.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "KA-05-AJ-6807")
	assert.Contains(t, w.Body.String(), "Test Garage")
}

func TestInventoryScreens(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, postForm("/admin/inventory", url.Values{
		"name": {"Oil filter"}, "category": {"Filters"}, "quantity": {"3"}, "price": {"8.50"},
	}))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/inventory?category=Filters", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Oil filter")
	assert.Contains(t, w.Body.String(), "$8.50")

	items, err := s.inv.AllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	base := fmt.Sprintf("/admin/inventory/%d", items[0].ID)

	w = s.do(t, postForm(base+"/stock", url.Values{"delta": {"-5"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "only 3 in stock")

	w = s.do(t, postForm(base+"/stock", url.Values{"delta": {"-2"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	item, err := s.inv.GetItem(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	w = s.do(t, postForm(base, url.Values{"name": {""}, "quantity": {"1"}, "price": {"-1"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, postForm(base+"/delete", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(t, getJSON(base))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExports(t *testing.T) {
	s := newTestServer(t)
	s.createJob(t)
	for _, path := range []string{"/admin/jobs/export.xlsx", "/admin/inventory/export.xlsx"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
		assert.NotZero(t, w.Body.Len())
	}
}

func TestNewFormsRender(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/admin/jobs/new", "/admin/inventory/new"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestServerErrorLogsStaff(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter("garage-test", false, &buf)
	t.Cleanup(func() { logger.Logger = zerolog.Nop() })

	r := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	r = r.WithContext(auth.WithStaff(r.Context(), "mechanic"))
	w := httptest.NewRecorder()
	serverError(w, r, errors.New("db down"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mechanic", line["staff"])
	assert.Equal(t, "db down", line["error"])
	assert.Equal(t, "/admin/jobs", line["path"])
}
