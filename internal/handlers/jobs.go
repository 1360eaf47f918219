package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/diewo77/go-garage/internal/admin"
	"github.com/diewo77/go-garage/internal/httpx"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/validation"
)

const (
	jobListTemplate = "admin/jobs/list.html"
	jobEditTemplate = "admin/jobs/edit.html"
)

// JobHandler serves the job screens with their inline services and payments.
type JobHandler struct {
	jobs      *services.JobService
	inventory *services.InventoryService
	view      Renderer
}

func NewJobHandler(jobs *services.JobService, inventory *services.InventoryService, v Renderer) *JobHandler {
	return &JobHandler{jobs: jobs, inventory: inventory, view: v}
}

func jobURL(id uint) string {
	return "/admin/jobs/" + strconv.FormatUint(uint64(id), 10)
}

// jobPayload is the JSON shape of a job with its money position.
type jobPayload struct {
	*models.Job
	Summary services.Summary `json:"summary"`
}

func newJobPayload(j *models.Job) jobPayload {
	return jobPayload{Job: j, Summary: services.Summarize(j)}
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := admin.JobFilterFromQuery(q)
	jobs, total, err := h.jobs.ListJobs(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		out := make([]jobPayload, 0, len(jobs))
		for i := range jobs {
			out = append(out, newJobPayload(&jobs[i]))
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"jobs": out, "total": total})
		return
	}
	render(w, r, h.view, http.StatusOK, jobListTemplate, map[string]any{
		"Title": "Jobs",
		"List":  admin.NewJobList(jobs, total, f, q),
	})
}

// renderEdit shows the job page. job is nil on the add form.
func (h *JobHandler) renderEdit(w http.ResponseWriter, r *http.Request, status int, job *models.Job, form admin.Form, decorate func(admin.JobEdit) admin.JobEdit) {
	parts, err := h.inventory.AllItems(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	edit := admin.NewJobEdit(job, form, parts)
	if decorate != nil {
		edit = decorate(edit)
	}
	render(w, r, h.view, status, jobEditTemplate, map[string]any{
		"Title": edit.Title(),
		"Edit":  edit,
	})
}

func (h *JobHandler) New(w http.ResponseWriter, r *http.Request) {
	values := url.Values{}
	values.Set("status", string(models.JobPending))
	values.Set("date_in", time.Now().Format(services.DateInLayout))
	h.renderEdit(w, r, http.StatusOK, nil, admin.NewForm(values, nil), nil)
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, values, v := decodeJob(r)
	if v.Empty() {
		job, err := h.jobs.CreateJob(r.Context(), in)
		if err == nil {
			if httpx.WantsJSON(r) {
				httpx.JSON(w, http.StatusCreated, newJobPayload(job))
				return
			}
			http.Redirect(w, r, jobURL(job.ID), http.StatusSeeOther)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	if httpx.WantsJSON(r) {
		invalidJSON(w, v)
		return
	}
	h.renderEdit(w, r, http.StatusUnprocessableEntity, nil, admin.NewForm(values, v), nil)
}

func (h *JobHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, newJobPayload(job))
		return
	}
	h.renderEdit(w, r, http.StatusOK, job, admin.NewForm(admin.JobFormValues(job), nil), nil)
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, values, v := decodeJob(r)
	if v.Empty() {
		job, err := h.jobs.UpdateJob(r.Context(), id, in)
		if err == nil {
			if httpx.WantsJSON(r) {
				httpx.JSON(w, http.StatusOK, newJobPayload(job))
				return
			}
			http.Redirect(w, r, jobURL(id), http.StatusSeeOther)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.invalidOnJob(w, r, id, v, func(*models.Job) admin.Form { return admin.NewForm(values, v) }, nil)
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.jobs.DeleteJob(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/admin/jobs", http.StatusSeeOther)
}

// invalidOnJob answers a rejected write on the job page: 422 JSON, or the
// job page re-rendered with the offending form.
func (h *JobHandler) invalidOnJob(w http.ResponseWriter, r *http.Request, id uint, v validation.Violations, jobForm func(*models.Job) admin.Form, decorate func(admin.JobEdit) admin.JobEdit) {
	if httpx.WantsJSON(r) {
		invalidJSON(w, v)
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	form := admin.NewForm(admin.JobFormValues(job), nil)
	if jobForm != nil {
		form = jobForm(job)
	}
	h.renderEdit(w, r, http.StatusUnprocessableEntity, job, form, decorate)
}

// written answers a successful inline write.
func (h *JobHandler) written(w http.ResponseWriter, r *http.Request, jobID uint, status int, payload any) {
	if httpx.WantsJSON(r) {
		if payload == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httpx.JSON(w, status, payload)
		return
	}
	http.Redirect(w, r, jobURL(jobID), http.StatusSeeOther)
}

func (h *JobHandler) serviceRejected(w http.ResponseWriter, r *http.Request, jobID uint, values url.Values, v validation.Violations) {
	h.invalidOnJob(w, r, jobID, v, nil, func(e admin.JobEdit) admin.JobEdit {
		return e.WithServiceForm(admin.NewForm(values, v))
	})
}

func (h *JobHandler) paymentRejected(w http.ResponseWriter, r *http.Request, jobID uint, values url.Values, v validation.Violations) {
	h.invalidOnJob(w, r, jobID, v, nil, func(e admin.JobEdit) admin.JobEdit {
		return e.WithPaymentForm(admin.NewForm(values, v))
	})
}

func (h *JobHandler) AddService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, values, v := decodeService(r)
	if v.Empty() {
		svc, err := h.jobs.AddService(r.Context(), id, in)
		if err == nil {
			h.written(w, r, id, http.StatusCreated, svc)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.serviceRejected(w, r, id, values, v)
}

func (h *JobHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	in, values, v := decodeService(r)
	if v.Empty() {
		svc, err := h.jobs.UpdateService(r.Context(), id, sid, in)
		if err == nil {
			h.written(w, r, id, http.StatusOK, svc)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.serviceRejected(w, r, id, values, v)
}

func (h *JobHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	if err := h.jobs.DeleteService(r.Context(), id, sid); err != nil {
		fail(w, r, err)
		return
	}
	h.written(w, r, id, http.StatusNoContent, nil)
}

func (h *JobHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, values, v := decodePayment(r)
	if v.Empty() {
		pay, err := h.jobs.AddPayment(r.Context(), id, in)
		if err == nil {
			h.written(w, r, id, http.StatusCreated, pay)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.paymentRejected(w, r, id, values, v)
}

func (h *JobHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pid, ok := pathID(w, r, "pid")
	if !ok {
		return
	}
	in, values, v := decodePayment(r)
	if v.Empty() {
		pay, err := h.jobs.UpdatePayment(r.Context(), id, pid, in)
		if err == nil {
			h.written(w, r, id, http.StatusOK, pay)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.paymentRejected(w, r, id, values, v)
}

func (h *JobHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pid, ok := pathID(w, r, "pid")
	if !ok {
		return
	}
	if err := h.jobs.DeletePayment(r.Context(), id, pid); err != nil {
		fail(w, r, err)
		return
	}
	h.written(w, r, id, http.StatusNoContent, nil)
}
