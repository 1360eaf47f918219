package main

import (
	"net/http"
	"time"

	"github.com/diewo77/go-garage/internal/auth"
	"github.com/diewo77/go-garage/internal/config"
	"github.com/diewo77/go-garage/internal/handlers"
	"github.com/diewo77/go-garage/internal/httpx"
	"github.com/diewo77/go-garage/internal/jobsheet"
	"github.com/diewo77/go-garage/internal/lock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/view"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	db      *gorm.DB
	gate    *auth.Gate
	metrics *metrics.Metrics

	home      *handlers.HomeHandler
	jobs      *handlers.JobHandler
	inventory *handlers.InventoryHandler
	sheets    *handlers.JobSheetHandler
	exports   *handlers.ExportHandler
}

// NewApp wires services and handlers over db.
func NewApp(cfg *config.Config, db *gorm.DB, locker lock.Locker, m *metrics.Metrics) *App {
	opts := []services.Option{services.WithLocker(locker), services.WithMetrics(m)}
	jobSvc := services.NewJobService(db, opts...)
	invSvc := services.NewInventoryService(db, opts...)

	v := view.New(view.Config{
		Dev:      cfg.App.Dev,
		Defaults: map[string]any{"GarageName": cfg.App.GarageName},
	})
	renderer := jobsheet.NewRenderer(cfg.PDF.Engine, cfg.PDF.Bin, cfg.PDF.TempDir)

	app := &App{
		mux:       http.NewServeMux(),
		db:        db,
		gate:      auth.New(cfg.Auth.User, cfg.Auth.PasswordHash),
		metrics:   m,
		home:      handlers.NewHomeHandler(v),
		jobs:      handlers.NewJobHandler(jobSvc, invSvc, v),
		inventory: handlers.NewInventoryHandler(invSvc, v),
		sheets:    handlers.NewJobSheetHandler(jobSvc, renderer, m, cfg.App.GarageName),
		exports:   handlers.NewExportHandler(jobSvc, invSvc),
	}
	app.setupRoutes()

	// metrics wraps the mux directly to see the matched pattern; logging sits
	// inside otelhttp so request lines carry the trace
	var h http.Handler = m.Middleware(app.mux)
	h = withLogging(h)
	h = otelhttp.NewHandler(h, "garage-http")
	h = chimw.Recoverer(h)
	h = chimw.RealIP(h)
	app.handler = chimw.RequestID(h)
	return app
}

// Handler returns the mux behind the global middleware chain.
func (a *App) Handler() http.Handler { return a.handler }

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// staff puts a handler behind the admin gate.
func (a *App) staff(h http.HandlerFunc) http.Handler {
	return a.gate.Middleware(h)
}

func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /{$}", a.home.Index)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", a.metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Job sheets
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /print-jobsheet/{id}/{$}", a.staff(a.sheets.PDF))
	a.mux.Handle("GET /print-jobsheet/{id}", a.staff(a.sheets.PDF))
	a.mux.Handle("GET /jobs/{id}/sheet", a.staff(a.sheets.Preview))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin: jobs with inline services and payments
	// ─────────────────────────────────────────────────────────────────────────
	jh := a.jobs
	a.mux.Handle("GET /admin/{$}", a.staff(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/jobs", http.StatusFound)
	}))
	a.mux.Handle("GET /admin/jobs", a.staff(jh.List))
	a.mux.Handle("GET /admin/jobs/new", a.staff(jh.New))
	a.mux.Handle("GET /admin/jobs/export.xlsx", a.staff(a.exports.Jobs))
	a.mux.Handle("POST /admin/jobs", a.staff(jh.Create))
	a.mux.Handle("GET /admin/jobs/{id}", a.staff(jh.Show))
	a.mux.Handle("POST /admin/jobs/{id}", a.staff(jh.Update))
	a.mux.Handle("POST /admin/jobs/{id}/delete", a.staff(jh.Delete))
	a.mux.Handle("POST /admin/jobs/{id}/services", a.staff(jh.AddService))
	a.mux.Handle("POST /admin/jobs/{id}/services/{sid}", a.staff(jh.UpdateService))
	a.mux.Handle("POST /admin/jobs/{id}/services/{sid}/delete", a.staff(jh.DeleteService))
	a.mux.Handle("POST /admin/jobs/{id}/payments", a.staff(jh.AddPayment))
	a.mux.Handle("POST /admin/jobs/{id}/payments/{pid}", a.staff(jh.UpdatePayment))
	a.mux.Handle("POST /admin/jobs/{id}/payments/{pid}/delete", a.staff(jh.DeletePayment))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin: inventory
	// ─────────────────────────────────────────────────────────────────────────
	ih := a.inventory
	a.mux.Handle("GET /admin/inventory", a.staff(ih.List))
	a.mux.Handle("GET /admin/inventory/new", a.staff(ih.New))
	a.mux.Handle("GET /admin/inventory/export.xlsx", a.staff(a.exports.Inventory))
	a.mux.Handle("POST /admin/inventory", a.staff(ih.Create))
	a.mux.Handle("GET /admin/inventory/{id}", a.staff(ih.Show))
	a.mux.Handle("POST /admin/inventory/{id}", a.staff(ih.Update))
	a.mux.Handle("POST /admin/inventory/{id}/delete", a.staff(ih.Delete))
	a.mux.Handle("POST /admin/inventory/{id}/stock", a.staff(ih.AdjustStock))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		logger.Error(r.Context()).Err(err).Msg("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loggingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lw *loggingWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.bytes += n
	return n, err
}

// withLogging logs one line per request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)
		logger.Info(r.Context()).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", lw.status).
			Int("bytes", lw.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
