// Package source implements product sources for the catalog index.
// The primary source reads a Google Sheets worksheet through the values
// REST API with service-account credentials.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/msaseller/storefront/internal/catalog"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultTTL is the source-side cache lifetime. The catalog index has
	// its own staleness window on top of this.
	DefaultTTL = 5 * time.Minute

	defaultBaseURL = "https://sheets.googleapis.com"
	readScope      = "https://www.googleapis.com/auth/spreadsheets.readonly"
)

// Sheets fetches products from a Google Sheets worksheet. The first row is
// the header; recognized columns map onto Product fields, everything else
// lands in Product.Extra. Rows without a product name are skipped.
type Sheets struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string
	readRange     string
	ttl           time.Duration
	now           func() time.Time

	mu        sync.Mutex
	cached    []catalog.Product
	fetchedAt time.Time
}

// SheetsOpts holds parameters for creating a Sheets source.
type SheetsOpts struct {
	CredentialsJSON []byte // service-account key; required unless HTTPClient is injected
	SpreadsheetID   string
	ReadRange       string        // A1 notation, e.g. "Catalog!A1:Z"
	TTL             time.Duration // defaults to DefaultTTL
	// For testing: inject an HTTP client and base URL instead of real
	// Google auth.
	HTTPClient *http.Client
	BaseURL    string
	Now        func() time.Time
}

// NewSheets creates a Sheets source. With no injected client it builds an
// authenticated one from the service-account key.
func NewSheets(opts SheetsOpts) (*Sheets, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("source: sheets: spreadsheet id is required")
	}
	if opts.ReadRange == "" {
		return nil, fmt.Errorf("source: sheets: read range is required")
	}

	client := opts.HTTPClient
	if client == nil {
		if len(opts.CredentialsJSON) == 0 {
			return nil, fmt.Errorf("source: sheets: credentials are required")
		}
		cfg, err := google.JWTConfigFromJSON(opts.CredentialsJSON, readScope)
		if err != nil {
			return nil, fmt.Errorf("source: sheets: parse credentials: %w", err)
		}
		client = cfg.Client(context.Background())
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Sheets{
		client:        client,
		baseURL:       baseURL,
		spreadsheetID: opts.SpreadsheetID,
		readRange:     opts.ReadRange,
		ttl:           ttl,
		now:           now,
	}, nil
}

// Fetch returns the current product list, serving the source-side cache
// while it is fresh.
func (s *Sheets) Fetch(ctx context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) <= s.ttl {
		return copyProducts(s.cached), nil
	}

	rows, err := s.fetchValues(ctx)
	if err != nil {
		return nil, err
	}
	products := mapRows(rows)

	s.cached = products
	s.fetchedAt = s.now()
	return copyProducts(products), nil
}

// Invalidate drops the source-side cache so the next Fetch hits the sheet.
// Used by forced refreshes to bypass both cache layers.
func (s *Sheets) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

// fetchValues calls the spreadsheets.values.get endpoint.
func (s *Sheets) fetchValues(ctx context.Context) ([][]string, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.readRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("source: sheets: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: sheets: fetch values: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("source: sheets: values.get status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("source: sheets: decode values: %w", err)
	}
	return payload.Values, nil
}

// mapRows converts sheet rows into products using the header row. Field
// values are trimmed; rows with an empty name are dropped.
func mapRows(rows [][]string) []catalog.Product {
	if len(rows) < 2 {
		return nil
	}
	headers := rows[0]

	var products []catalog.Product
	for _, row := range rows[1:] {
		p := catalog.Product{}
		for i, h := range headers {
			if i >= len(row) {
				break
			}
			val := strings.TrimSpace(row[i])
			if val == "" {
				continue
			}
			assignField(&p, strings.ToLower(strings.TrimSpace(h)), val)
		}
		if p.Name == "" {
			continue
		}
		products = append(products, p)
	}
	return products
}

// assignField maps one header/value pair onto the product. Both the English
// pricelist headers and the Russian parser headers are recognized.
func assignField(p *catalog.Product, header, val string) {
	switch header {
	case "product", "название", "название товара":
		p.Name = val
	case "category", "категория":
		p.Category = val
	case "subcategory", "подкатегория":
		p.Subcategory = val
	case "lab", "brand", "бренд":
		p.Brand = val
	case "color", "цвет":
		p.Color = val
	case "model", "модель":
		p.Model = val
	case "strength", "сила", "характеристики":
		p.Spec = val
	case "description", "описание":
		p.Description = val
	case "quantity", "кол-во":
		p.Quantity = val
	case "wholesale", "price", "цена":
		p.Price = val
	case "image", "фото":
		p.PhotoURL = ConvertDriveLink(firstLink(val))
	default:
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[header] = val
	}
}

// firstLink takes the first whitespace- or comma-separated token of a cell
// that may hold several links.
func firstLink(raw string) string {
	fields := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ConvertDriveLink rewrites a Google Drive file link into a direct download
// URL. Non-Drive links pass through unchanged.
func ConvertDriveLink(link string) string {
	const marker = "drive.google.com/file/d/"
	i := strings.Index(link, marker)
	if i < 0 {
		return link
	}
	rest := link[i+len(marker):]
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return ""
	}
	return "https://drive.google.com/uc?export=download&id=" + id
}

func copyProducts(in []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, len(in))
	copy(out, in)
	return out
}
