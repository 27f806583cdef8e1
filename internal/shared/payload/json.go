package payload

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Parse decodes raw JSON into a Value
func Parse(data []byte) (Value, error) {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return Null(), fmt.Errorf("failed to decode payload: %w", err)
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(v.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Decode converts v into a typed structure by round-tripping through JSON
func (v Value) Decode(out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", v.kind, err)
	}
	return nil
}
