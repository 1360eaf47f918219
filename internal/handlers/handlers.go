// Package handlers holds the HTTP handlers of the garage back office.
package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-garage/internal/auth"
	"github.com/diewo77/go-garage/internal/httpx"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/services"
	"github.com/diewo77/go-garage/internal/validation"
)

// Renderer is the page rendering the handlers need.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error
	RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	http.NotFound(w, r)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	ev := logger.Error(r.Context()).Err(err).Str("method", r.Method).Str("path", r.URL.Path)
	if staff, ok := auth.StaffFromContext(r.Context()); ok {
		ev = ev.Str("staff", staff)
	}
	ev.Msg("request failed")
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// fail maps a service error that is not a validation error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrNotFound) {
		notFound(w, r)
		return
	}
	serverError(w, r, err)
}

func invalidJSON(w http.ResponseWriter, v validation.Violations) {
	httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
}

func render(w http.ResponseWriter, r *http.Request, v Renderer, status int, name string, data map[string]any) {
	if err := v.RenderStatus(w, r, status, name, data); err != nil {
		serverError(w, r, err)
	}
}

// pathID reads a numeric path value, answering 404 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, ok := httpx.PathID(r, name)
	if !ok {
		notFound(w, r)
	}
	return id, ok
}
