package vertex

import "testing"

func TestNameHex(t *testing.T) {
	n := NameFromBytes([]byte{0xab, 0x01})
	if n.Hex() != "ab01" {
		t.Errorf("Hex() = %q, want %q", n.Hex(), "ab01")
	}
	back, err := NameFromHex("ab01")
	if err != nil || back != n {
		t.Errorf("NameFromHex = %v, %v", back, err)
	}
	if !n.HasHexPrefix("AB0") {
		t.Errorf("HasHexPrefix(AB0) = false, want true")
	}
	if _, err := NameFromHex("zz"); err == nil {
		t.Error("NameFromHex(zz) succeeded, want error")
	}
}

func TestNameString(t *testing.T) {
	if got := Name("A").String(); got != "A" {
		t.Errorf("String() = %q, want %q", got, "A")
	}
	if got := NameFromBytes([]byte{0, 1}).String(); got != "0001" {
		t.Errorf("String() = %q, want %q", got, "0001")
	}
}

func TestNameCompare(t *testing.T) {
	if Name("a").Compare(Name("b")) >= 0 {
		t.Error("a should sort before b")
	}
	if Name("ab").Compare(Name("a")) <= 0 {
		t.Error("ab should sort after a")
	}
}
