// Package jobsheet renders a printable job sheet as HTML and PDF.
package jobsheet

import (
	"fmt"
	"time"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/shopspring/decimal"
)

// Line is one service on the sheet.
type Line struct {
	Name       string
	Part       string
	Quantity   int
	UnitPrice  string
	PartCost   string
	LabourCost string
	Total      string
}

// PaymentLine is one payment on the sheet.
type PaymentLine struct {
	Date   string
	Amount string
}

// Sheet is everything printed on a job sheet, already formatted.
type Sheet struct {
	GarageName    string
	JobID         uint
	CustomerName  string
	VehicleReg    string
	Status        string
	DateIn        string
	PaymentStatus string
	Lines         []Line
	Payments      []PaymentLine
	Total         string
	Paid          string
	Due           string
	GeneratedAt   string
}

const sheetDateLayout = "02 Jan 2006 15:04"

// NewSheet formats a job loaded with its services, parts and payments.
func NewSheet(job *models.Job, garageName string, now time.Time) Sheet {
	s := Sheet{
		GarageName:    garageName,
		JobID:         job.ID,
		CustomerName:  job.CustomerName,
		VehicleReg:    job.VehicleReg,
		Status:        string(job.Status),
		DateIn:        job.DateIn.Local().Format(sheetDateLayout),
		PaymentStatus: job.PaymentStatus.Label(),
		Total:         models.FormatMoney(job.TotalAmount()),
		Paid:          models.FormatMoney(job.AmountPaid()),
		GeneratedAt:   now.Local().Format(sheetDateLayout),
	}
	due := job.Outstanding()
	if due.IsNegative() {
		due = decimal.Zero
	}
	s.Due = models.FormatMoney(due)
	for i := range job.Services {
		svc := &job.Services[i]
		l := Line{
			Name:       svc.Name,
			Part:       "-",
			Quantity:   svc.Quantity,
			UnitPrice:  "-",
			PartCost:   models.FormatMoney(svc.PartCost()),
			LabourCost: models.FormatMoney(svc.LabourCost),
			Total:      models.FormatMoney(svc.TotalCost()),
		}
		if svc.Part != nil {
			l.Part = svc.Part.Name
			l.UnitPrice = models.FormatMoney(svc.Part.Price)
		}
		s.Lines = append(s.Lines, l)
	}
	for _, p := range job.Payments {
		s.Payments = append(s.Payments, PaymentLine{
			Date:   p.Date.Local().Format(sheetDateLayout),
			Amount: models.FormatMoney(p.Amount),
		})
	}
	return s
}

// Filename is the download name suggested to the browser.
func (s Sheet) Filename() string {
	return fmt.Sprintf("jobsheet_%d.pdf", s.JobID)
}
