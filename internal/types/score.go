package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Score is a match percentage as reported by the validation service.
//
// The service normally sends a number (0–100), but when it could not read a
// field off the card it sends a string such as "Not Recognised" instead.
// Score keeps whatever arrived, verbatim, so it can be rendered as is.
type Score struct {
	raw     string
	numeric bool
}

// NumericScore builds a Score from a number.
func NumericScore(v float64) Score {
	return Score{raw: strconv.FormatFloat(v, 'f', -1, 64), numeric: true}
}

// TextScore builds a Score from a non-numeric marker.
func TextScore(s string) Score {
	return Score{raw: s}
}

// IsSet reports whether the key was present (and not null) in the response.
func (s Score) IsSet() bool { return s.raw != "" }

// IsNumeric reports whether the service sent a number.
func (s Score) IsNumeric() bool { return s.numeric }

// Float returns the numeric value; ok is false for text or missing scores.
func (s Score) Float() (v float64, ok bool) {
	if !s.numeric {
		return 0, false
	}
	v, err := strconv.ParseFloat(s.raw, 64)
	return v, err == nil
}

// String renders the score for display: "87%" for numbers, the text as is
// otherwise, and "" when the key was missing.
func (s Score) String() string {
	if s.numeric {
		return s.raw + "%"
	}
	return s.raw
}

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = Score{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = TextScore(text)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("score: expected number or string, got %s", data)
	}
	*s = Score{raw: n.String(), numeric: true}
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	switch {
	case !s.IsSet():
		return []byte("null"), nil
	case s.numeric:
		return []byte(s.raw), nil
	}
	return json.Marshal(s.raw)
}
