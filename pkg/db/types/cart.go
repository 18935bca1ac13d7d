package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Cart maps product ids to quantities, stored as a jsonb column on the user row.
type Cart map[string]int

// Value implements driver.Valuer, serializing the cart as JSON.
func (c Cart) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for jsonb/text columns.
func (c *Cart) Scan(src any) error {
	if src == nil {
		*c = Cart{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cart: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*c = Cart{}
		return nil
	}
	parsed := Cart{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("unmarshal cart: %w", err)
	}
	*c = parsed
	return nil
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c) == 0
}
