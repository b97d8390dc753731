// Package control defines the control message exchanged between the tracker
// and the renderer, and its plaintext wire format.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a payload is not three comma-separated floats.
var ErrMalformed = errors.New("malformed control message")

// NumFields is the number of comma-separated fields in an encoded message.
const NumFields = 3

// Message is one control sample: two rotation angles in degrees and a zoom scale.
// Each message fully replaces the previously known control state.
type Message struct {
	XAngle float64 `json:"xangle"`
	YAngle float64 `json:"yangle"`
	Scale  float64 `json:"scale"`
}

// Encode renders m as "<xangle>,<yangle>,<scale>".
func Encode(m Message) string {
	return formatFloat(m.XAngle) + "," + formatFloat(m.YAngle) + "," + formatFloat(m.Scale)
}

// String implements fmt.Stringer using the wire format.
func (m Message) String() string {
	return Encode(m)
}

// Parse decodes a payload produced by Encode (or any "<float>,<float>,<float>" text).
func Parse(payload string) (Message, error) {
	fields := strings.Split(payload, ",")
	if len(fields) != NumFields {
		return Message{}, fmt.Errorf("%w: want %d fields, got %d in %q", ErrMalformed, NumFields, len(fields), payload)
	}

	var values [NumFields]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i, err)
		}
		values[i] = v
	}

	return Message{XAngle: values[0], YAngle: values[1], Scale: values[2]}, nil
}

// formatFloat writes the shortest decimal that parses back to v.
// Whole numbers keep a trailing ".0" so the payload always reads as a float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
