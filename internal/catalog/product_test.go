package catalog

import "testing"

func TestPriceMinor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"12 300 ₽", 12300},
		{"9,200₽", 9200},
		{"75.000", 75000},
		{"1500", 1500},
		{"", 0},
		{"договорная", 0},
		{"₽", 0},
		{"٣٤٥ ₽", 0}, // non-ASCII digits are noise, not value
		{"1٣5", 15},
	}
	for _, tt := range tests {
		if got := PriceMinor(tt.in); got != tt.want {
			t.Errorf("PriceMinor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatLineSkipsEmptyFields(t *testing.T) {
	p := Product{
		Name:  "iPhone 15 Pro",
		Color: "Titanium",
		Price: "99 000 ₽",
	}
	want := "iPhone 15 Pro — Titanium — 99 000 ₽"
	if got := p.FormatLine(); got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestFormatLineFieldPriority(t *testing.T) {
	p := Product{
		Name:        "Galaxy S24",
		Brand:       "Samsung",
		Color:       "Gray",
		Spec:        "256GB",
		Description: "флагман",
		Price:       "60 000 ₽",
	}
	want := "Galaxy S24 — Samsung — Gray — 256GB — флагман — 60 000 ₽"
	if got := p.FormatLine(); got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := Product{Name: "x", Extra: map[string]string{"ТИП": "гаджет"}}
	cp := p.Clone()
	cp.Extra["ТИП"] = "изменено"
	if p.Extra["ТИП"] != "гаджет" {
		t.Error("Clone() must copy the Extra map, not alias it")
	}
}

func TestKeyApproximatesIdentity(t *testing.T) {
	a := Product{Name: "iPad Air", Price: "55 000 ₽"}
	b := Product{Name: "iPad Air", Price: "55 000 ₽"}
	c := Product{Name: "iPad Air", Price: "50 000 ₽"}
	if a.Key() != b.Key() {
		t.Error("same (name, price) must produce the same key")
	}
	if a.Key() == c.Key() {
		t.Error("different price must produce a different key")
	}
}
