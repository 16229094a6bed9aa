package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Order maps board positions to tile indices: order[p] is the tile at p.
type Order []int

// UnmarshalJSON accepts either an array or an object keyed by position.
// Positions missing from the object form are set to -1 so validation
// rejects them. Object keys must be below MaxTileCount.
func (o *Order) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}

	if data[0] == '[' {
		var arr []int
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*o = arr
		return nil
	}

	var obj map[string]int
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("order must be an array or an object keyed by position: %w", err)
	}

	size := 0
	for k := range obj {
		p, err := strconv.Atoi(k)
		if err != nil || p < 0 || p >= MaxTileCount {
			return fmt.Errorf("invalid position %q", k)
		}
		if p+1 > size {
			size = p + 1
		}
	}

	out := make(Order, size)
	for i := range out {
		out[i] = -1
	}
	for k, v := range obj {
		p, _ := strconv.Atoi(k)
		out[p] = v
	}
	*o = out
	return nil
}

// Clone returns a copy that does not alias o.
func (o Order) Clone() Order {
	if o == nil {
		return nil
	}
	out := make(Order, len(o))
	copy(out, o)
	return out
}
