package httpapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Number is a float64 that tolerates sloppy client payloads: JSON numbers,
// numeric strings, null and garbage all decode without failing the request.
// Anything unusable is zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal([]byte(s), &f); err == nil {
		*n = Number(f)
		return nil
	}
	var str string
	if err := json.Unmarshal([]byte(s), &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*n = Number(f)
			return nil
		}
	}
	*n = 0
	return nil
}

// Flag is a bool with the same tolerance: true/"true"/"1"/nonzero numbers
// are true, everything else is false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch s {
	case "", "null":
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal([]byte(s), &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var num float64
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		*f = num != 0
		return nil
	}
	var str string
	if err := json.Unmarshal([]byte(s), &str); err == nil {
		switch strings.ToLower(strings.TrimSpace(str)) {
		case "true", "1", "yes", "y":
			*f = true
		default:
			*f = false
		}
		return nil
	}
	*f = false
	return nil
}
