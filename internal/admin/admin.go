// Package admin builds the typed view models behind each back-office screen.
package admin

import (
	"net/url"
	"strconv"
	"time"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/validation"
	"github.com/shopspring/decimal"
)

// DateTimeLayout is how dates appear in list columns.
const DateTimeLayout = "Jan 2, 2006, 3:04 PM"

// Option is one choice in a filter sidebar.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Filter is a named group of options, keyed by its query parameter.
type Filter struct {
	Title   string
	Param   string
	Options []Option
}

// Badge is a coloured label.
type Badge struct {
	Text  string
	Color string
}

// Pager describes the current page of a list.
type Pager struct {
	Page       int
	PerPage    int
	Total      int64
	PrevQuery  string
	NextQuery  string
	TotalPages int
}

func newPager(q url.Values, page, perPage int, total int64) Pager {
	if perPage <= 0 {
		perPage = 25
	}
	if page < 1 {
		page = 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	p := Pager{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
	if page > 1 {
		p.PrevQuery = withPage(q, page-1)
	}
	if page < pages {
		p.NextQuery = withPage(q, page+1)
	}
	return p
}

func withPage(q url.Values, page int) string {
	c := url.Values{}
	for k, v := range q {
		c[k] = append([]string(nil), v...)
	}
	c.Set("page", strconv.Itoa(page))
	return c.Encode()
}

func pageParam(q url.Values) int {
	n, _ := strconv.Atoi(q.Get("page"))
	return n
}

// Money renders an amount as $x.xx.
func Money(d decimal.Decimal) string { return models.FormatMoney(d) }

// AmountDue renders what is still owed, never below $0.00.
func AmountDue(outstanding decimal.Decimal) string {
	if !outstanding.IsPositive() {
		return "$0.00"
	}
	return Money(outstanding)
}

// StockBadge shows the remaining stock of a service's part.
func StockBadge(part *models.InventoryItem) Badge {
	if part == nil {
		return Badge{Text: "N/A"}
	}
	color := "red"
	if part.Quantity > models.LowStockThreshold {
		color = "green"
	}
	return Badge{Text: strconv.Itoa(part.Quantity) + " left", Color: color}
}

// PaymentBadge shows a payment status in its colour.
func PaymentBadge(s models.PaymentStatus) Badge {
	return Badge{Text: s.Label(), Color: s.Color()}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(DateTimeLayout)
}

// Form is the state of an edit form: posted values and their errors.
type Form struct {
	Values     map[string]string
	Violations validation.Violations
}

func (f Form) Value(name string) string { return f.Values[name] }
func (f Form) Error(name string) string { return f.Violations[name] }
func (f Form) HasErrors() bool          { return !f.Violations.Empty() }

// NewForm copies the first value of each posted field.
func NewForm(values url.Values, v validation.Violations) Form {
	f := Form{Values: map[string]string{}, Violations: v}
	for k, vs := range values {
		if len(vs) > 0 {
			f.Values[k] = vs[0]
		}
	}
	if f.Violations == nil {
		f.Violations = validation.Violations{}
	}
	return f
}

// JobFilterFromQuery reads the job list filters from a query string.
func JobFilterFromQuery(q url.Values) services.JobFilter {
	f := services.JobFilter{
		Search: q.Get("q"),
		Page:   pageParam(q),
	}
	if s := models.JobStatus(q.Get("status")); s.Valid() {
		f.Status = s
	}
	if ps := models.PaymentStatus(q.Get("payment_status")); ps.Valid() {
		f.PaymentStatus = ps
	}
	return f
}

// InventoryFilterFromQuery reads the inventory list filters from a query string.
func InventoryFilterFromQuery(q url.Values) services.InventoryFilter {
	return services.InventoryFilter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Page:     pageParam(q),
	}
}
