package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusUnprocessableEntity, "validation_failed", map[string]string{"amount": "no amount due"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	want := `{"error":"validation_failed","details":{"amount":"no amount due"}}`
	if got := w.Body.String(); got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
}

func TestWantsJSON(t *testing.T) {
	cases := map[string]bool{
		"application/json":            true,
		"text/html,application/json":  false,
		"":                            false,
		"application/json; charset=x": true,
	}
	for accept, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept", accept)
		if got := WantsJSON(r); got != want {
			t.Errorf("WantsJSON(%q) = %v, want %v", accept, got, want)
		}
	}
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var got uint
	var ok bool
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, ok = PathID(r, "id")
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/42", nil))
	if !ok || got != 42 {
		t.Fatalf("PathID = %d, %v", got, ok)
	}
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	if ok {
		t.Fatal("expected invalid id")
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	if err := DecodeJSON(r, &v); err == nil {
		t.Fatal("expected error")
	}
}
