package handlers

import "net/http"

// HomeHandler serves the landing page.
type HomeHandler struct {
	view Renderer
}

func NewHomeHandler(v Renderer) *HomeHandler {
	return &HomeHandler{view: v}
}

func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.view, http.StatusOK, "index.html", map[string]any{"Title": "Home"})
}
