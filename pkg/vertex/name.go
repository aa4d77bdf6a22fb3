package vertex

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Name is an immutable, opaque vertex identifier. The underlying string
// holds raw bytes and is not required to be valid UTF-8.
type Name string

// NameFromBytes copies b into a Name.
func NameFromBytes(b []byte) Name {
	return Name(b)
}

// NameFromHex decodes a full-length hex string.
func NameFromHex(s string) (Name, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode vertex name %q: %w", s, err)
	}
	return Name(b), nil
}

// Bytes returns a copy of the raw bytes.
func (n Name) Bytes() []byte {
	return []byte(n)
}

// Hex returns the lowercase hex encoding.
func (n Name) Hex() string {
	return hex.EncodeToString([]byte(n))
}

// String renders printable names verbatim and everything else as hex.
func (n Name) String() string {
	if isPrintable(string(n)) {
		return string(n)
	}
	return n.Hex()
}

// Compare orders names byte-wise.
func (n Name) Compare(o Name) int {
	return bytes.Compare([]byte(n), []byte(o))
}

// HasHexPrefix reports whether the hex form of n starts with prefix.
func (n Name) HasHexPrefix(prefix string) bool {
	return strings.HasPrefix(n.Hex(), strings.ToLower(prefix))
}

// MarshalText encodes the name as hex.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.Hex()), nil
}

// UnmarshalText decodes a hex-encoded name.
func (n *Name) UnmarshalText(text []byte) error {
	v, err := NameFromHex(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func isPrintable(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Names converts strings into names.
func Names(s ...string) []Name {
	out := make([]Name, len(s))
	for i, v := range s {
		out[i] = Name(v)
	}
	return out
}
