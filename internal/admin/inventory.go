package admin

import (
	"net/url"
	"strconv"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
)

// InventoryRow is one line of the inventory list.
type InventoryRow struct {
	ID          uint
	Name        string
	Category    string
	Quantity    int
	Price       string
	LastUpdated string
	Low         bool
}

// InventoryList is the inventory changelist.
type InventoryList struct {
	Rows    []InventoryRow
	Filters []Filter
	Search  string
	Query   string
	Pager   Pager
}

func NewInventoryList(items []models.InventoryItem, total int64, categories []string, f services.InventoryFilter, q url.Values) InventoryList {
	rows := make([]InventoryRow, 0, len(items))
	for i := range items {
		it := &items[i]
		rows = append(rows, InventoryRow{
			ID:          it.ID,
			Name:        it.Name,
			Category:    it.Category,
			Quantity:    it.Quantity,
			Price:       Money(it.Price),
			LastUpdated: formatDate(it.LastUpdated),
			Low:         it.LowStock(),
		})
	}
	opts := make([]Option, 0, len(categories))
	for _, c := range categories {
		opts = append(opts, Option{Value: c, Label: c, Selected: c == f.Category})
	}
	return InventoryList{
		Rows:    rows,
		Filters: []Filter{{Title: "Category", Param: "category", Options: opts}},
		Search:  f.Search,
		Query:   q.Encode(),
		Pager:   newPager(q, f.Page, f.PerPage, total),
	}
}

// InventoryEdit is the item change form.
type InventoryEdit struct {
	ID          uint
	Form        Form
	LastUpdated string
	StockForm   Form
}

// InventoryFormValues maps a stored item onto form field values.
func InventoryFormValues(it *models.InventoryItem) url.Values {
	v := url.Values{}
	v.Set("name", it.Name)
	v.Set("category", it.Category)
	v.Set("quantity", strconv.Itoa(it.Quantity))
	v.Set("price", it.Price.StringFixed(2))
	return v
}

func NewInventoryEdit(item *models.InventoryItem, form Form) InventoryEdit {
	e := InventoryEdit{Form: form, StockForm: NewForm(nil, nil)}
	if item != nil {
		e.ID = item.ID
		e.LastUpdated = formatDate(item.LastUpdated)
	}
	return e
}

func (e InventoryEdit) Title() string {
	if e.ID == 0 {
		return "Add inventory item"
	}
	return "Change inventory item #" + strconv.FormatUint(uint64(e.ID), 10)
}
