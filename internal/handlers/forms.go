package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-garage/internal/httpx"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/validation"
	"github.com/shopspring/decimal"
)

// formReader converts posted strings, recording a violation per bad field.
type formReader struct {
	values url.Values
	v      validation.Violations
}

func (f *formReader) str(name string) string {
	return strings.TrimSpace(f.values.Get(name))
}

func (f *formReader) integer(name string) int {
	raw := f.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.v.Add(name, "must be a whole number")
	}
	return n
}

func (f *formReader) amount(name string) decimal.Decimal {
	raw := f.str(name)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.v.Add(name, "must be a number")
		return decimal.Zero
	}
	return d
}

func (f *formReader) ref(name string) *uint {
	raw := f.str(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		f.v.Add(name, "unknown part")
		return nil
	}
	id := uint(n)
	return &id
}

func (f *formReader) date(name string) time.Time {
	t, err := services.ParseDateIn(f.str(name))
	if err != nil {
		f.v.Add(name, "Invalid date format. Please enter a valid date.")
	}
	return t
}

// decode fills dst from a JSON body, or from the posted form through parse.
// It returns the raw form values for re-rendering and any conversion errors.
func decode(r *http.Request, dst any, parse func(f *formReader)) (url.Values, validation.Violations) {
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, dst); err != nil {
			return nil, validation.Violations{"_": "invalid JSON body"}
		}
		return nil, validation.Violations{}
	}
	if err := r.ParseForm(); err != nil {
		return nil, validation.Violations{"_": "invalid form body"}
	}
	f := &formReader{values: r.PostForm, v: validation.Violations{}}
	parse(f)
	return r.PostForm, f.v
}

func decodeJob(r *http.Request) (services.JobInput, url.Values, validation.Violations) {
	var in services.JobInput
	values, v := decode(r, &in, func(f *formReader) {
		in.CustomerName = f.str("customer_name")
		in.VehicleReg = f.str("vehicle_reg")
		in.Status = models.JobStatus(f.str("status"))
		in.DateIn = f.date("date_in")
	})
	return in, values, v
}

func decodeService(r *http.Request) (services.ServiceInput, url.Values, validation.Violations) {
	var in services.ServiceInput
	values, v := decode(r, &in, func(f *formReader) {
		in.Name = f.str("name")
		in.PartID = f.ref("part_id")
		in.Quantity = f.integer("quantity")
		in.LabourCost = f.amount("labour_cost")
	})
	return in, values, v
}

func decodePayment(r *http.Request) (services.PaymentInput, url.Values, validation.Violations) {
	var in services.PaymentInput
	values, v := decode(r, &in, func(f *formReader) {
		in.Amount = f.amount("amount")
		in.Date = f.date("date")
	})
	return in, values, v
}

func decodeInventory(r *http.Request) (services.InventoryInput, url.Values, validation.Violations) {
	var in services.InventoryInput
	values, v := decode(r, &in, func(f *formReader) {
		in.Name = f.str("name")
		in.Category = f.str("category")
		in.Quantity = f.integer("quantity")
		in.Price = f.amount("price")
	})
	return in, values, v
}

type stockInput struct {
	Delta int `json:"delta"`
}

func decodeStock(r *http.Request) (stockInput, url.Values, validation.Violations) {
	var in stockInput
	values, v := decode(r, &in, func(f *formReader) {
		in.Delta = f.integer("delta")
	})
	return in, values, v
}
