package entity

import (
	"testing"
)

func TestRegistry_Get(t *testing.T) {
	defs := []Definition{
		{Entity: "customers", Checksum: "aaa"},
		{Entity: "orders", Checksum: "bbb"},
	}
	r := NewRegistry(defs)

	d, ok := r.Get("orders")
	if !ok {
		t.Fatal("Get(orders) should succeed")
	}
	if d.Entity != "orders" {
		t.Errorf("Entity = %q, want orders", d.Entity)
	}

	if _, ok := r.Get("suppliers"); ok {
		t.Error("Get(suppliers) should fail")
	}
}

func TestRegistry_All_sorted(t *testing.T) {
	r := NewRegistry([]Definition{
		{Entity: "stock"},
		{Entity: "customers"},
		{Entity: "orders"},
	})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d definitions, want 3", len(all))
	}
	if all[0].Entity != "customers" || all[2].Entity != "stock" {
		t.Errorf("All() not sorted: %v", all)
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := NewRegistry([]Definition{{Entity: "customers", Checksum: "aaa"}})
	before := r.Checksum()

	r.Replace([]Definition{{Entity: "orders", Checksum: "bbb"}})

	if _, ok := r.Get("customers"); ok {
		t.Error("customers should be gone after Replace")
	}
	if _, ok := r.Get("orders"); !ok {
		t.Error("orders should exist after Replace")
	}
	if r.Checksum() == before {
		t.Error("Checksum should change after Replace")
	}
}

func TestRegistry_Checksum_order_independent(t *testing.T) {
	a := NewRegistry([]Definition{{Entity: "a", Checksum: "x"}, {Entity: "b", Checksum: "y"}})
	b := NewRegistry([]Definition{{Entity: "b", Checksum: "y"}, {Entity: "a", Checksum: "x"}})
	if a.Checksum() != b.Checksum() {
		t.Error("Checksum should not depend on definition order")
	}
}
