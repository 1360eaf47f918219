package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/diewo77/go-garage/internal/admin"
	"github.com/diewo77/go-garage/internal/httpx"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/validation"
)

const (
	inventoryListTemplate = "admin/inventory/list.html"
	inventoryEditTemplate = "admin/inventory/edit.html"
)

// InventoryHandler serves the inventory screens.
type InventoryHandler struct {
	inventory *services.InventoryService
	view      Renderer
}

func NewInventoryHandler(inventory *services.InventoryService, v Renderer) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, view: v}
}

func itemURL(id uint) string {
	return "/admin/inventory/" + strconv.FormatUint(uint64(id), 10)
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := admin.InventoryFilterFromQuery(q)
	items, total, err := h.inventory.ListItems(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
		return
	}
	categories, err := h.inventory.Categories(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	render(w, r, h.view, http.StatusOK, inventoryListTemplate, map[string]any{
		"Title": "Inventory",
		"List":  admin.NewInventoryList(items, total, categories, f, q),
	})
}

func (h *InventoryHandler) renderEdit(w http.ResponseWriter, r *http.Request, status int, edit admin.InventoryEdit) {
	render(w, r, h.view, status, inventoryEditTemplate, map[string]any{
		"Title": edit.Title(),
		"Edit":  edit,
	})
}

func (h *InventoryHandler) New(w http.ResponseWriter, r *http.Request) {
	values := url.Values{}
	values.Set("quantity", "0")
	values.Set("price", "0.00")
	h.renderEdit(w, r, http.StatusOK, admin.NewInventoryEdit(nil, admin.NewForm(values, nil)))
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, values, v := decodeInventory(r)
	if v.Empty() {
		item, err := h.inventory.CreateItem(r.Context(), in)
		if err == nil {
			if httpx.WantsJSON(r) {
				httpx.JSON(w, http.StatusCreated, item)
				return
			}
			http.Redirect(w, r, "/admin/inventory", http.StatusSeeOther)
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
	h.renderEdit(w, r, http.StatusUnprocessableEntity, admin.NewInventoryEdit(nil, admin.NewForm(values, v)))
}

func (h *InventoryHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.inventory.GetItem(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, item)
		return
	}
	h.renderEdit(w, r, http.StatusOK, admin.NewInventoryEdit(item, admin.NewForm(admin.InventoryFormValues(item), nil)))
}

// rejected re-renders the item page after a failed write. edit picks which
// form on the page carries the errors.
func (h *InventoryHandler) rejected(w http.ResponseWriter, r *http.Request, id uint, v validation.Violations, edit func(*models.InventoryItem) admin.InventoryEdit) {
	if httpx.WantsJSON(r) {
		invalidJSON(w, v)
		return
	}
	item, err := h.inventory.GetItem(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.renderEdit(w, r, http.StatusUnprocessableEntity, edit(item))
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, values, v := decodeInventory(r)
	if v.Empty() {
		item, err := h.inventory.UpdateItem(r.Context(), id, in)
		if err == nil {
			if httpx.WantsJSON(r) {
				httpx.JSON(w, http.StatusOK, item)
				return
			}
			http.Redirect(w, r, "/admin/inventory", http.StatusSeeOther)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.rejected(w, r, id, v, func(item *models.InventoryItem) admin.InventoryEdit {
		return admin.NewInventoryEdit(item, admin.NewForm(values, v))
	})
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.inventory.DeleteItem(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/admin/inventory", http.StatusSeeOther)
}

// AdjustStock applies a signed delta to the quantity on hand.
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, values, v := decodeStock(r)
	if v.Empty() {
		item, err := h.inventory.AdjustStock(r.Context(), id, in.Delta)
		if err == nil {
			if httpx.WantsJSON(r) {
				httpx.JSON(w, http.StatusOK, item)
				return
			}
			http.Redirect(w, r, itemURL(id), http.StatusSeeOther)
			return
		}
		if v = validation.FromError(err); v == nil {
			fail(w, r, err)
			return
		}
	}
	h.rejected(w, r, id, v, func(item *models.InventoryItem) admin.InventoryEdit {
		e := admin.NewInventoryEdit(item, admin.NewForm(admin.InventoryFormValues(item), nil))
		e.StockForm = admin.NewForm(values, v)
		return e
	})
}
