package types

import "testing"

func TestCartScanRoundTrip(t *testing.T) {
	value, err := Cart{"p_1": 2, "p_2": 1}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var scanned Cart
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned["p_1"] != 2 || scanned["p_2"] != 1 {
		t.Fatalf("unexpected cart contents: %v", scanned)
	}
}

func TestCartScanNilYieldsEmpty(t *testing.T) {
	var scanned Cart
	if err := scanned.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !scanned.IsEmpty() {
		t.Fatalf("expected empty cart, got %v", scanned)
	}
}

func TestNilCartSerializesAsEmptyObject(t *testing.T) {
	value, err := Cart(nil).Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if value != "{}" {
		t.Fatalf("expected empty object, got %v", value)
	}
}
