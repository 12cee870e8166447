// Package answers models survey answer values: a single string or an
// ordered set of strings, keyed by question id.
package answers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// Answer is either a single value or an ordered set of values.
// The zero value is an empty single answer.
type Answer struct {
	values []string
	multi  bool
}

// Single builds a single-valued answer.
func Single(v string) Answer {
	return Answer{values: []string{v}}
}

// Set builds an ordered-set answer; duplicates are dropped keeping the first occurrence.
func Set(values ...string) Answer {
	a := Answer{multi: true, values: make([]string, 0, len(values))}
	for _, v := range values {
		a = a.With(v)
	}
	return a
}

// IsSet reports whether the answer is an ordered set.
func (a Answer) IsSet() bool { return a.multi }

// Value returns the single value, or the first element of a set.
func (a Answer) Value() string {
	if len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// Values returns a copy of the values in insertion order.
func (a Answer) Values() []string {
	return slices.Clone(a.values)
}

// Len returns the number of values.
func (a Answer) Len() int { return len(a.values) }

// Contains reports whether v is part of the answer.
func (a Answer) Contains(v string) bool {
	return slices.Contains(a.values, v)
}

// With returns a set answer with v appended unless already present.
func (a Answer) With(v string) Answer {
	out := Answer{multi: true, values: slices.Clone(a.values)}
	if !slices.Contains(out.values, v) {
		out.values = append(out.values, v)
	}
	return out
}

// Without returns a set answer with every value matching drop removed.
func (a Answer) Without(drop func(string) bool) Answer {
	out := Answer{multi: true, values: make([]string, 0, len(a.values))}
	for _, v := range a.values {
		if !drop(v) {
			out.values = append(out.values, v)
		}
	}
	return out
}

// MarshalJSON encodes a set as an array and a single answer as a string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.multi {
		if a.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.values)
	}
	return json.Marshal(a.Value())
}

// UnmarshalJSON accepts a string or an array of strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("answers: decode set: %w", err)
		}
		*a = Set(vs...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answers: decode value: %w", err)
	}
	*a = Single(s)
	return nil
}

// Answers maps question ids to answers.
type Answers map[string]Answer

// Clone returns an independent copy.
func (as Answers) Clone() Answers {
	out := make(Answers, len(as))
	for k, v := range as {
		out[k] = Answer{multi: v.multi, values: slices.Clone(v.values)}
	}
	return out
}

// Value implements driver.Valuer; answers are stored as a JSON document.
func (as Answers) Value() (driver.Value, error) {
	if as == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]Answer(as))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON/JSONB and TEXT columns.
func (as *Answers) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*as = Answers{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("answers: unsupported scan type %T", src)
	}
	data = bytes.TrimSpace(data)
	// Rows written by the first bot generation hold a JSON string that wraps the document.
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fmt.Errorf("answers: decode wrapped document: %w", err)
		}
		data = []byte(inner)
	}
	out := Answers{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, (*map[string]Answer)(&out)); err != nil {
			return fmt.Errorf("answers: decode document: %w", err)
		}
	}
	*as = out
	return nil
}

// Flatten returns every value of the answer: one for a single answer, all of a set.
func (a Answer) Flatten() []string {
	if !a.multi && len(a.values) == 1 && a.values[0] == "" {
		return nil
	}
	return a.Values()
}
