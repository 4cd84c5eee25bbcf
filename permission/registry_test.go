package permission

import "testing"

func TestRegistryAssignsSequentialBits(t *testing.T) {
	reg, err := NewRegistry("a", "b", "c")
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	for i, name := range []string{"a", "b", "c"} {
		bit, ok := reg.Bit(name)
		if !ok || bit != i {
			t.Fatalf("expected %s at bit %d, got %d ok=%v", name, i, bit, ok)
		}
		back, ok := reg.Name(i)
		if !ok || back != name {
			t.Fatalf("expected name %s for bit %d, got %s", name, i, back)
		}
	}
	if reg.Count() != 3 {
		t.Fatalf("expected 3, got %d", reg.Count())
	}
}

func TestRegistryRejectsDuplicateEmptyAndFrozen(t *testing.T) {
	reg, err := NewRegistry("a")
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := reg.Register("a"); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := reg.Register(""); err == nil {
		t.Fatal("expected empty name error")
	}
	reg.Freeze()
	if _, err := reg.Register("b"); err == nil {
		t.Fatal("expected frozen error")
	}
}

func TestRegistryLimit(t *testing.T) {
	reg, _ := NewRegistry()
	for i := 0; i < maxActions; i++ {
		if _, err := reg.Register(string(rune('A' + i))); err != nil {
			t.Fatalf("register %d failed: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow"); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestMask64SetClearHas(t *testing.T) {
	var m Mask64
	m.Set(3)
	m.Set(63)
	m.Set(64)
	m.Set(-1)
	if !m.Has(3) || !m.Has(63) {
		t.Fatal("expected bits 3 and 63")
	}
	if m.Has(64) || m.Has(-1) {
		t.Fatal("out of range bits must report false")
	}
	m.Clear(3)
	if m.Has(3) {
		t.Fatal("bit 3 should be cleared")
	}
	if m.Raw() != 1<<63 {
		t.Fatalf("unexpected raw value %x", m.Raw())
	}
}
