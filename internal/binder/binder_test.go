package binder

import "testing"

func TestGet_topLevel(t *testing.T) {
	rec := map[string]any{"name": "Padaria Central"}

	v, ok := Get(rec, "name")
	if !ok {
		t.Fatal("Get returned ok = false")
	}
	if v != "Padaria Central" {
		t.Errorf("Get = %v, want Padaria Central", v)
	}
}

func TestGet_nested(t *testing.T) {
	rec := map[string]any{
		"billing_address": map[string]any{
			"cep":  "89000000",
			"city": "Blumenau",
		},
	}

	v, ok := Get(rec, "billing_address.cep")
	if !ok {
		t.Fatal("Get returned ok = false")
	}
	if v != "89000000" {
		t.Errorf("Get = %v, want 89000000", v)
	}
}

func TestGet_absentKey(t *testing.T) {
	rec := map[string]any{"name": "x"}

	if _, ok := Get(rec, "missing"); ok {
		t.Error("Get of absent key returned ok = true")
	}
}

func TestGet_absentIntermediate(t *testing.T) {
	rec := map[string]any{"name": "x"}

	// Reading through an absent intermediate node yields absent, not an error.
	if _, ok := Get(rec, "contact.phone.area"); ok {
		t.Error("Get through absent intermediate returned ok = true")
	}
}

func TestGet_nonMapIntermediate(t *testing.T) {
	rec := map[string]any{"contact": "not-a-map"}

	if _, ok := Get(rec, "contact.name"); ok {
		t.Error("Get through non-map intermediate returned ok = true")
	}
}

func TestGet_nilRecord(t *testing.T) {
	if _, ok := Get(nil, "anything"); ok {
		t.Error("Get on nil record returned ok = true")
	}
}

func TestGet_nullValue(t *testing.T) {
	rec := map[string]any{"delivery_method": nil}

	v, ok := Get(rec, "delivery_method")
	if !ok {
		t.Fatal("Get of explicit null returned ok = false")
	}
	if v != nil {
		t.Errorf("Get = %v, want nil", v)
	}
}

func TestSet_topLevel(t *testing.T) {
	wc := map[string]any{}
	Set(wc, "cep", "01310100")

	if wc["cep"] != "01310100" {
		t.Errorf("wc[cep] = %v, want 01310100", wc["cep"])
	}
}

func TestSet_allocatesIntermediates(t *testing.T) {
	wc := map[string]any{}
	Set(wc, "billing_address.cep", "89000000")

	addr, ok := wc["billing_address"].(map[string]any)
	if !ok {
		t.Fatalf("billing_address = %T, want map[string]any", wc["billing_address"])
	}
	if addr["cep"] != "89000000" {
		t.Errorf("cep = %v, want 89000000", addr["cep"])
	}
}

func TestSet_deepPath(t *testing.T) {
	wc := map[string]any{}
	Set(wc, "contact.phone.area", "47")

	v, ok := Get(wc, "contact.phone.area")
	if !ok || v != "47" {
		t.Errorf("Get after deep Set = %v (ok=%v), want 47", v, ok)
	}
}

func TestSet_preservesSiblings(t *testing.T) {
	wc := map[string]any{
		"billing_address": map[string]any{"city": "Blumenau"},
	}
	Set(wc, "billing_address.cep", "89000000")

	addr := wc["billing_address"].(map[string]any)
	if addr["city"] != "Blumenau" {
		t.Errorf("sibling city = %v, want Blumenau", addr["city"])
	}
	if addr["cep"] != "89000000" {
		t.Errorf("cep = %v, want 89000000", addr["cep"])
	}
}

func TestSet_overwritesNonMapIntermediate(t *testing.T) {
	wc := map[string]any{"contact": "scalar"}
	Set(wc, "contact.name", "Ana")

	v, ok := Get(wc, "contact.name")
	if !ok || v != "Ana" {
		t.Errorf("Get after Set over scalar = %v (ok=%v), want Ana", v, ok)
	}
}

func TestSet_overwriteExisting(t *testing.T) {
	wc := map[string]any{"cep": "89000000"}
	Set(wc, "cep", "01310100")

	if wc["cep"] != "01310100" {
		t.Errorf("cep = %v, want 01310100", wc["cep"])
	}
}
