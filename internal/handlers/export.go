package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/diewo77/go-garage/internal/admin"
	"github.com/diewo77/go-garage/internal/export"
	"github.com/diewo77/go-garage/internal/services"
)

// ExportHandler downloads the admin lists as spreadsheets.
type ExportHandler struct {
	jobs      *services.JobService
	inventory *services.InventoryService
}

func NewExportHandler(jobs *services.JobService, inventory *services.InventoryService) *ExportHandler {
	return &ExportHandler{jobs: jobs, inventory: inventory}
}

func sendWorkbook(w http.ResponseWriter, name string, buf *bytes.Buffer) {
	filename := name + "_" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = buf.WriteTo(w)
}

// Jobs exports every job matching the list filters.
func (h *ExportHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	f := admin.JobFilterFromQuery(r.URL.Query())
	f.Page, f.PerPage = 1, services.AllPages
	jobs, _, err := h.jobs.ListJobs(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Jobs(&buf, jobs); err != nil {
		serverError(w, r, err)
		return
	}
	sendWorkbook(w, "jobs", &buf)
}

// Inventory exports every item matching the list filters.
func (h *ExportHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	f := admin.InventoryFilterFromQuery(r.URL.Query())
	f.Page, f.PerPage = 1, services.AllPages
	items, _, err := h.inventory.ListItems(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Inventory(&buf, items); err != nil {
		serverError(w, r, err)
		return
	}
	sendWorkbook(w, "inventory", &buf)
}
