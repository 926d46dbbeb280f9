package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Hex represents a hexadecimal-encoded number as a string (e.g., "0x1a"),
// the quantity encoding used by Ethereum-style JSON-RPC endpoints. It
// provides validation, JSON round-tripping, and numeric conversion.
type Hex string

// HexFromUint64 encodes n as a Hex quantity.
func HexFromUint64(n uint64) Hex {
	return Hex(fmt.Sprintf("0x%x", n))
}

// HexFromString validates the input string and returns a Hex value if valid.
func HexFromString(s string) (Hex, error) {
	if err := validateHex(s); err != nil {
		return "", err
	}
	return Hex(s), nil
}

// validateHex checks whether a string is a valid hexadecimal number
// prefixed with "0x" or "0X".
func validateHex(s string) error {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("hex string must start with 0x")
	}

	if _, err := strconv.ParseUint(s[2:], 16, 64); err != nil {
		return fmt.Errorf("invalid hexadecimal value: %w", err)
	}

	return nil
}

// MarshalJSON encodes the Hex as a JSON string.
func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(h))
}

// UnmarshalJSON parses and validates a JSON-encoded hexadecimal string.
func (h *Hex) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid hex string: %w", err)
	}

	if err := validateHex(s); err != nil {
		return err
	}

	*h = Hex(s)
	return nil
}

// IsEmpty reports whether the Hex holds no value at all.
func (h Hex) IsEmpty() bool {
	return h == ""
}

// Uint64 returns the decoded uint64 value. Invalid values decode as zero.
func (h Hex) Uint64() uint64 {
	if len(h) < 3 {
		return 0
	}
	v, _ := strconv.ParseUint(string(h)[2:], 16, 64)
	return v
}
