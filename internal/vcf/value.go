// Package vcf provides VCF header parsing and feature construction.
package vcf

import "encoding/json"

// MissingValue is the token VCF uses for an absent column value.
const MissingValue = "."

// Value is a single column value. Valid is false when the column held the
// missing-value token.
type Value struct {
	Text  string
	Valid bool
}

// Present returns a valid Value holding s.
func Present(s string) Value {
	return Value{Text: s, Valid: true}
}

// Or returns the text of v, or def when v is missing.
func (v Value) Or(def string) string {
	if !v.Valid {
		return def
	}
	return v.Text
}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON decodes null as a missing value.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = Present(s)
	return nil
}

// NormalizeMissing converts raw columns into Values, marking every column
// equal to MissingValue as absent.
func NormalizeMissing(fields []string) []Value {
	values := make([]Value, len(fields))
	for i, f := range fields {
		if f != MissingValue {
			values[i] = Present(f)
		}
	}
	return values
}
