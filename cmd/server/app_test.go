package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/diewo77/go-garage/internal/auth"
	"github.com/diewo77/go-garage/internal/config"
	"github.com/diewo77/go-garage/internal/db"
	"github.com/diewo77/go-garage/internal/lock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func newApp(t *testing.T) *App {
	t.Helper()
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			RawDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		},
		App:  config.AppConfig{GarageName: "E2E Garage"},
		PDF:  config.PDFConfig{Engine: "maroto", TempDir: t.TempDir()},
		Auth: config.AuthConfig{User: "admin", PasswordHash: hash},
	}
	conn, err := db.Open(t.Context(), cfg.Database)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn, cfg.Database, false))
	require.NoError(t, db.Seed(conn))

	return NewApp(cfg, conn, lock.NewLocalLocker(), metrics.New())
}

func newTestApp(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(newApp(t))
	t.Cleanup(srv.Close)
	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return srv, client
}

func send(t *testing.T, c *http.Client, method, target string, form url.Values, authed bool) *http.Response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authed {
		req.SetBasicAuth("admin", "pw")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPublicRoutes(t *testing.T) {
	srv, c := newTestApp(t)

	resp := send(t, c, http.MethodGet, srv.URL+"/", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "E2E Garage")

	resp = send(t, c, http.MethodGet, srv.URL+"/healthz", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))
}

func TestAdminRequiresCredentials(t *testing.T) {
	srv, c := newTestApp(t)

	resp := send(t, c, http.MethodGet, srv.URL+"/admin/jobs", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = send(t, c, http.MethodGet, srv.URL+"/admin/jobs", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, c, http.MethodGet, srv.URL+"/admin/inventory", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Oil filter")
}

func TestJobLifecycleEndToEnd(t *testing.T) {
	srv, c := newTestApp(t)

	resp := send(t, c, http.MethodPost, srv.URL+"/admin/jobs", url.Values{
		"customer_name": {"Ravi"},
		"vehicle_reg":   {"ka05aj6807"},
	}, true)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	jobPath := resp.Header.Get("Location")
	id := strings.TrimPrefix(jobPath, "/admin/jobs/")

	resp = send(t, c, http.MethodPost, srv.URL+jobPath+"/services", url.Values{
		"name": {"Oil change"}, "part_id": {"1"}, "quantity": {"2"}, "labour_cost": {"10"},
	}, true)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// seeded oil filter is 8.50: 2 * 8.50 + 10 = 27.00
	resp = send(t, c, http.MethodPost, srv.URL+jobPath+"/payments", url.Values{"amount": {"30"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "payment exceeds total due: 27.00")

	resp = send(t, c, http.MethodPost, srv.URL+jobPath+"/payments", url.Values{"amount": {"27"}}, true)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = send(t, c, http.MethodGet, srv.URL+jobPath, nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, "Fully Paid")
	assert.Contains(t, page, "$27.00")

	resp = send(t, c, http.MethodGet, srv.URL+"/print-jobsheet/"+id+"/", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="jobsheet_`+id+`.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(readBody(t, resp), "%PDF"))

	resp = send(t, c, http.MethodGet, srv.URL+"/print-jobsheet/424242/", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = send(t, c, http.MethodGet, srv.URL+"/metrics", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metricsBody := readBody(t, resp)
	assert.Contains(t, metricsBody, `garage_payments_total{result="rejected"} 1`)
	assert.Contains(t, metricsBody, `garage_jobsheets_total{result="ok"} 1`)
	assert.Contains(t, metricsBody, `route="POST /admin/jobs/{id}/payments"`)
}

func TestRequestLogCarriesTrace(t *testing.T) {
	app := newApp(t)
	var buf bytes.Buffer
	logger.InitWriter("garage-test", false, &buf)
	t.Cleanup(func() { logger.Logger = zerolog.Nop() })
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["message"])
	assert.Equal(t, "/healthz", line["path"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.NotEmpty(t, line["span_id"])
}
