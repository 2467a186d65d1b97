package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// sheetServer serves a values.get payload and counts hits.
func sheetServer(t *testing.T, values [][]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{"values": values})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestSheets(t *testing.T, srv *httptest.Server, now func() time.Time) *Sheets {
	t.Helper()
	s, err := NewSheets(SheetsOpts{
		SpreadsheetID: "sheet-1",
		ReadRange:     "Catalog!A1:Z",
		HTTPClient:    srv.Client(),
		BaseURL:       srv.URL,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("NewSheets: %v", err)
	}
	return s
}

func TestFetchMapsRows(t *testing.T) {
	srv, _ := sheetServer(t, [][]string{
		{"PRODUCT", "CATEGORY", "STRENGTH", "DESCRIPTION", "WholeSale", "LAB", "TYPE", "IMAGE"},
		{" Testofort ", "Injectables", "250mg", "энантат", "2 300 ₽", "Sterodium", "амп", "https://drive.google.com/file/d/abc123/view?usp=sharing"},
		{"", "Injectables", "", "", "", "", "", ""}, // no name, dropped
		{"Orals Mix", "", "", "", "1 100 ₽", "", "", ""},
	})
	s := newTestSheets(t, srv, nil)

	products, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("len(products) = %d, want 2", len(products))
	}

	p := products[0]
	if p.Name != "Testofort" {
		t.Errorf("Name = %q (must be trimmed)", p.Name)
	}
	if p.Category != "Injectables" || p.Brand != "Sterodium" || p.Spec != "250mg" {
		t.Errorf("mapped product = %+v", p)
	}
	if p.Price != "2 300 ₽" {
		t.Errorf("Price = %q", p.Price)
	}
	if p.PhotoURL != "https://drive.google.com/uc?export=download&id=abc123" {
		t.Errorf("PhotoURL = %q", p.PhotoURL)
	}
	if p.Extra["type"] != "амп" {
		t.Errorf("Extra = %v, want unrecognized column preserved", p.Extra)
	}

	// Second row has no category; the index maps that to the sentinel.
	if products[1].Category != "" {
		t.Errorf("products[1].Category = %q, want empty passthrough", products[1].Category)
	}
}

func TestFetchRussianHeaders(t *testing.T) {
	srv, _ := sheetServer(t, [][]string{
		{"Название товара", "Категория", "Подкатегория", "Характеристики", "Цена"},
		{"iPhone 15 Pro", "iPhone", "15 Pro", "256GB Titanium", "99 000 ₽"},
	})
	s := newTestSheets(t, srv, nil)

	products, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("len(products) = %d, want 1", len(products))
	}
	p := products[0]
	if p.Name != "iPhone 15 Pro" || p.Subcategory != "15 Pro" || p.Spec != "256GB Titanium" {
		t.Errorf("product = %+v", p)
	}
}

func TestFetchUsesTTLCache(t *testing.T) {
	srv, hits := sheetServer(t, [][]string{
		{"PRODUCT"},
		{"x"},
	})
	clock := time.Unix(1700000000, 0)
	s := newTestSheets(t, srv, func() time.Time { return clock })

	s.Fetch(context.Background())
	s.Fetch(context.Background())
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1 (second fetch within TTL serves cache)", got)
	}

	clock = clock.Add(DefaultTTL + time.Second)
	s.Fetch(context.Background())
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2 after TTL expiry", got)
	}
}

func TestInvalidateBypassesCache(t *testing.T) {
	srv, hits := sheetServer(t, [][]string{
		{"PRODUCT"},
		{"x"},
	})
	s := newTestSheets(t, srv, nil)

	s.Fetch(context.Background())
	s.Invalidate()
	s.Fetch(context.Background())
	if got := hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2 after Invalidate", got)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend error", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	s := newTestSheets(t, srv, nil)

	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestConvertDriveLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://drive.google.com/file/d/abc123/view?usp=sharing",
			"https://drive.google.com/uc?export=download&id=abc123",
		},
		{"https://example.com/photo.jpg", "https://example.com/photo.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ConvertDriveLink(tt.in); got != tt.want {
			t.Errorf("ConvertDriveLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSheetsValidation(t *testing.T) {
	if _, err := NewSheets(SheetsOpts{ReadRange: "A1:Z"}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := NewSheets(SheetsOpts{SpreadsheetID: "x"}); err == nil {
		t.Error("expected error for missing range")
	}
	if _, err := NewSheets(SheetsOpts{SpreadsheetID: "x", ReadRange: "A1:Z"}); err == nil {
		t.Error("expected error for missing credentials")
	}
}
