package admin

import (
	"net/url"
	"strconv"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
)

// JobRow is one line of the job list.
type JobRow struct {
	ID            uint
	CustomerName  string
	VehicleReg    string
	Status        models.JobStatus
	DateIn        string
	TotalAmount   string
	AmountPaid    string
	PaymentStatus Badge
}

// JobList is the job changelist: columns, filters, search and paging.
type JobList struct {
	Rows    []JobRow
	Filters []Filter
	Search  string
	Query   string
	Pager   Pager
}

// NewJobList assembles the list screen from one page of jobs.
func NewJobList(jobs []models.Job, total int64, f services.JobFilter, q url.Values) JobList {
	rows := make([]JobRow, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		rows = append(rows, JobRow{
			ID:            j.ID,
			CustomerName:  j.CustomerName,
			VehicleReg:    j.VehicleReg,
			Status:        j.Status,
			DateIn:        formatDate(j.DateIn),
			TotalAmount:   Money(j.TotalAmount()),
			AmountPaid:    Money(j.AmountPaid()),
			PaymentStatus: PaymentBadge(j.PaymentStatus),
		})
	}
	statusOpts := make([]Option, 0, len(models.JobStatuses))
	for _, s := range models.JobStatuses {
		statusOpts = append(statusOpts, Option{Value: string(s), Label: string(s), Selected: f.Status == s})
	}
	payOpts := make([]Option, 0, len(models.PaymentStatuses))
	for _, s := range []models.PaymentStatus{models.FullyPaid, models.PartiallyPaid, models.NotPaid} {
		payOpts = append(payOpts, Option{Value: string(s), Label: s.Label(), Selected: f.PaymentStatus == s})
	}
	return JobList{
		Rows: rows,
		Filters: []Filter{
			{Title: "Status", Param: "status", Options: statusOpts},
			{Title: "Payment Status", Param: "payment_status", Options: payOpts},
		},
		Search: f.Search,
		Query:  q.Encode(),
		Pager:  newPager(q, f.Page, f.PerPage, total),
	}
}

// ServiceRow is one inline service line on the job page.
type ServiceRow struct {
	ID         uint
	Name       string
	PartID     uint
	PartName   string
	Quantity   int
	LabourCost string
	PartCost   string
	TotalCost  string
	Stock      Badge
}

// PaymentRow is one inline payment on the job page.
type PaymentRow struct {
	ID       uint
	Amount   string
	RawValue string
	Date     string
	// TotalAmountDue is the job's outstanding balance, shown on every row.
	TotalAmountDue string
}

// PartChoice is an entry of the part picker.
type PartChoice struct {
	ID    uint
	Label string
}

// JobEdit is the job change form with its inline services and payments.
type JobEdit struct {
	ID            uint
	Form          Form
	Statuses      []Option
	Services      []ServiceRow
	Payments      []PaymentRow
	Parts         []PartChoice
	TotalAmount   string
	AmountPaid    string
	AmountDue     string
	PaymentStatus Badge
	ServiceForm   Form
	PaymentForm   Form
}

// JobFormValues maps a stored job onto form field values.
func JobFormValues(j *models.Job) url.Values {
	v := url.Values{}
	v.Set("customer_name", j.CustomerName)
	v.Set("vehicle_reg", j.VehicleReg)
	v.Set("status", string(j.Status))
	if !j.DateIn.IsZero() {
		v.Set("date_in", j.DateIn.Local().Format(services.DateInLayout))
	}
	return v
}

func statusOptions(selected string) []Option {
	if selected == "" {
		selected = string(models.JobPending)
	}
	opts := make([]Option, 0, len(models.JobStatuses))
	for _, s := range models.JobStatuses {
		opts = append(opts, Option{Value: string(s), Label: string(s), Selected: string(s) == selected})
	}
	return opts
}

// NewJobEdit assembles the edit screen. job may be nil for the add form.
func NewJobEdit(job *models.Job, form Form, parts []models.InventoryItem) JobEdit {
	e := JobEdit{
		Form:        form,
		Statuses:    statusOptions(form.Value("status")),
		ServiceForm: NewForm(nil, nil),
		PaymentForm: NewForm(nil, nil),
	}
	for _, p := range parts {
		e.Parts = append(e.Parts, PartChoice{ID: p.ID, Label: p.Name + " (" + Money(p.Price) + ")"})
	}
	if job == nil {
		return e
	}
	summary := services.Summarize(job)
	e.ID = job.ID
	e.TotalAmount = Money(summary.Total)
	e.AmountPaid = Money(summary.Paid)
	e.AmountDue = AmountDue(summary.Outstanding)
	e.PaymentStatus = PaymentBadge(job.PaymentStatus)
	for i := range job.Services {
		s := &job.Services[i]
		row := ServiceRow{
			ID:         s.ID,
			Name:       s.Name,
			Quantity:   s.Quantity,
			LabourCost: s.LabourCost.StringFixed(2),
			PartCost:   Money(s.PartCost()),
			TotalCost:  Money(s.TotalCost()),
			Stock:      StockBadge(s.Part),
		}
		if s.Part != nil {
			row.PartID = s.Part.ID
			row.PartName = s.Part.Name
		}
		e.Services = append(e.Services, row)
	}
	for _, p := range job.Payments {
		e.Payments = append(e.Payments, PaymentRow{
			ID:             p.ID,
			Amount:         Money(p.Amount),
			RawValue:       p.Amount.StringFixed(2),
			Date:           formatDate(p.Date),
			TotalAmountDue: e.AmountDue,
		})
	}
	return e
}

// WithServiceForm returns e showing a rejected service submission.
func (e JobEdit) WithServiceForm(f Form) JobEdit {
	e.ServiceForm = f
	return e
}

// WithPaymentForm returns e showing a rejected payment submission.
func (e JobEdit) WithPaymentForm(f Form) JobEdit {
	e.PaymentForm = f
	return e
}

// Title is the page heading.
func (e JobEdit) Title() string {
	if e.ID == 0 {
		return "Add job"
	}
	return "Change job #" + strconv.FormatUint(uint64(e.ID), 10)
}
