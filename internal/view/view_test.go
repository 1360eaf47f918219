package view

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRenderWithLayoutAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "layout.html"), `<html><title>{{.GarageName}}</title>{{template "content" .}}</html>`)
	writeFile(t, filepath.Join(dir, "page.html"), `{{define "content"}}<p>{{money .Total}}</p>{{end}}`)

	v := New(Config{Dir: dir, Defaults: map[string]any{"GarageName": "Main St"}})
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := v.Render(w, r, "page.html", map[string]any{"Total": decimal.NewFromInt(60)}); err != nil {
		t.Fatalf("render: %v", err)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<title>Main St</title>") || !strings.Contains(body, "<p>$60.00</p>") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRenderFullDocumentSkipsLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "layout.html"), `LAYOUT`)
	writeFile(t, filepath.Join(dir, "index.html"), `<!DOCTYPE html><h1>Home</h1>`)

	v := New(Config{Dir: dir})
	w := httptest.NewRecorder()
	if err := v.RenderStatus(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusTeapot, "index.html", nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if w.Code != http.StatusTeapot || strings.Contains(w.Body.String(), "LAYOUT") {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRenderErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.html"), `<!DOCTYPE html>{{.Missing.Field}}`)
	v := New(Config{Dir: dir})
	w := httptest.NewRecorder()
	err := v.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), "bad.html", map[string]any{"Missing": 3})
	if err == nil {
		t.Fatal("expected error")
	}
	if w.Body.Len() != 0 {
		t.Fatalf("partial output written: %q", w.Body.String())
	}
}

func TestCacheUnlessDev(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.html")
	writeFile(t, path, `<!DOCTYPE html>one`)
	v := New(Config{Dir: dir})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_ = v.Render(httptest.NewRecorder(), r, "p.html", nil)
	writeFile(t, path, `<!DOCTYPE html>two`)
	w := httptest.NewRecorder()
	_ = v.Render(w, r, "p.html", nil)
	if !strings.Contains(w.Body.String(), "one") {
		t.Fatalf("expected cached template, got %s", w.Body.String())
	}

	dev := New(Config{Dir: dir, Dev: true})
	w = httptest.NewRecorder()
	_ = dev.Render(w, r, "p.html", nil)
	if !strings.Contains(w.Body.String(), "two") {
		t.Fatalf("expected fresh template, got %s", w.Body.String())
	}
}
