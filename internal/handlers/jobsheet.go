package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-garage/internal/jobsheet"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/models"
)

// JobLoader fetches a job with everything printed on its sheet.
type JobLoader interface {
	GetJob(ctx context.Context, id uint) (*models.Job, error)
}

// JobSheetHandler serves printable job sheets.
type JobSheetHandler struct {
	jobs       JobLoader
	renderer   *jobsheet.Renderer
	metrics    *metrics.Metrics
	garageName string
	now        func() time.Time
}

func NewJobSheetHandler(jobs JobLoader, renderer *jobsheet.Renderer, m *metrics.Metrics, garageName string) *JobSheetHandler {
	return &JobSheetHandler{jobs: jobs, renderer: renderer, metrics: m, garageName: garageName, now: time.Now}
}

func (h *JobSheetHandler) sheet(w http.ResponseWriter, r *http.Request) (jobsheet.Sheet, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return jobsheet.Sheet{}, false
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return jobsheet.Sheet{}, false
	}
	return jobsheet.NewSheet(job, h.garageName, h.now()), true
}

// PDF downloads the job sheet as jobsheet_<id>.pdf.
func (h *JobSheetHandler) PDF(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sheet(w, r)
	if !ok {
		return
	}
	pdf, err := h.renderer.PDF(r.Context(), s)
	h.metrics.JobSheetRendered(err)
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// Preview shows the sheet's HTML in the browser.
func (h *JobSheetHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sheet(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.HTML(&buf, s); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
