// Package view renders html/template pages wrapped in the shared layout.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/shopspring/decimal"
)

// Config tells a Renderer where templates live and what every page receives.
type Config struct {
	// Dir is the templates root holding layout.html. Empty means search
	// templates/ in the working directory and its parents.
	Dir string
	// Dev disables the template cache so edits show up on reload.
	Dev bool
	// Defaults are merged into every page's data unless the page sets them.
	Defaults map[string]any
}

// Renderer parses and caches page templates.
type Renderer struct {
	dir      string
	dev      bool
	defaults map[string]any

	mu    sync.RWMutex
	cache map[string]*template.Template
}

func New(cfg Config) *Renderer {
	dir := cfg.Dir
	if dir == "" {
		dir = detectBase()
	}
	return &Renderer{
		dir:      filepath.Clean(dir),
		dev:      cfg.Dev,
		defaults: cfg.Defaults,
		cache:    map[string]*template.Template{},
	}
}

func detectBase() string {
	for _, c := range []string{"templates", "../templates", "../../templates", "../../../templates"} {
		if fi, err := os.Stat(c); err == nil && fi.IsDir() {
			return c
		}
	}
	return "templates"
}

// Funcs is the func map available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return models.FormatMoney(d) },
		"year":  func() int { return time.Now().Year() },
		"join":  strings.Join,
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

var partials = []string{
	filepath.Join("partials", "filters.html"),
	filepath.Join("partials", "pager.html"),
	filepath.Join("partials", "field.html"),
}

func (v *Renderer) load(name string) (*template.Template, error) {
	if !v.dev {
		v.mu.RLock()
		t, ok := v.cache[name]
		v.mu.RUnlock()
		if ok {
			return t, nil
		}
	}

	mainPath := filepath.Join(v.dir, name)
	content, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	var t *template.Template
	layoutPath := filepath.Join(v.dir, "layout.html")
	_, layoutErr := os.Stat(layoutPath)
	// full documents are rendered as-is
	if bytes.Contains(bytes.ToLower(content), []byte("<!doctype")) || layoutErr != nil {
		t, err = template.New(filepath.Base(name)).Funcs(Funcs()).Parse(string(content))
	} else {
		files := []string{layoutPath, mainPath}
		for _, p := range partials {
			full := filepath.Join(v.dir, p)
			if fi, statErr := os.Stat(full); statErr == nil && !fi.IsDir() {
				files = append(files, full)
			}
		}
		t, err = template.New("layout.html").Funcs(Funcs()).ParseFiles(files...)
	}
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	if !v.dev {
		v.mu.Lock()
		v.cache[name] = t
		v.mu.Unlock()
	}
	return t, nil
}

// Render executes the named page with data into w. Output is buffered so a
// template error never leaves a half written page.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return v.RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code.
func (v *Renderer) RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	t, err := v.load(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	for k, val := range v.defaults {
		if _, ok := data[k]; !ok {
			data[k] = val
		}
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}
	if _, ok := data["Path"]; !ok {
		data["Path"] = r.URL.Path
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
