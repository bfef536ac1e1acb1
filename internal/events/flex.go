package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number as its string form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the value, or "" for a nil receiver.
func (f *FlexString) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// FlexInt decodes a JSON number or a numeric string as an int. Integral
// floats such as 329865.0 are accepted.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := parseInt(raw)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

func parseInt(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, fmt.Errorf("flex int: %q is not an integer", raw)
	}
	return int(v), nil
}

// IntPtr converts to *int, preserving nil.
func (f *FlexInt) IntPtr() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// Int64Ptr converts to *int64, preserving nil.
func (f *FlexInt) Int64Ptr() *int64 {
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

// FlexBool decodes a JSON bool or the strings "true"/"false".
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.ToLower(strings.TrimSpace(s)))
	}
	v, err := strconv.ParseBool(string(data))
	if err != nil {
		return fmt.Errorf("flex bool: %q is not a boolean", data)
	}
	*f = FlexBool(v)
	return nil
}
