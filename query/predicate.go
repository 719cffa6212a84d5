/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suparena/docstore/errors"
)

// DefaultAlias names the document in rendered query text.
const DefaultAlias = "root"

// Condition is a single equality between a top-level document property and a
// scalar literal.
type Condition struct {
	Field string
	Value any
}

// Predicate is a conjunction of equality conditions. The zero value matches
// every document.
type Predicate struct {
	conditions []Condition
}

// Equal starts a predicate with field = value.
func Equal(field string, value any) Predicate {
	return Predicate{}.And(field, value)
}

// And returns a copy of p with field = value appended.
func (p Predicate) And(field string, value any) Predicate {
	conds := make([]Condition, len(p.conditions), len(p.conditions)+1)
	copy(conds, p.conditions)
	conds = append(conds, Condition{Field: field, Value: value})
	return Predicate{conditions: conds}
}

// Conditions returns the conditions in the order they were added.
func (p Predicate) Conditions() []Condition {
	out := make([]Condition, len(p.conditions))
	copy(out, p.conditions)
	return out
}

// IsEmpty reports whether p has no conditions.
func (p Predicate) IsEmpty() bool {
	return len(p.conditions) == 0
}

// Validate checks every field name and normalizes every literal.
func (p Predicate) Validate() error {
	for _, c := range p.conditions {
		if !isIdentifier(c.Field) {
			return errors.Malformed("field %q is not a top-level property name", c.Field)
		}
		if _, err := Normalize(c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Normalized returns p with every literal in its JSON-decoded form: string,
// bool or float64.
func (p Predicate) Normalized() (Predicate, error) {
	if err := p.Validate(); err != nil {
		return Predicate{}, err
	}
	conds := make([]Condition, len(p.conditions))
	for i, c := range p.conditions {
		v, _ := Normalize(c.Value)
		conds[i] = Condition{Field: c.Field, Value: v}
	}
	return Predicate{conditions: conds}, nil
}

// Match reports whether doc satisfies every condition. Values are compared in
// their JSON-decoded form, so int 5 in a predicate matches 5.0 in a document.
func (p Predicate) Match(doc map[string]any) bool {
	for _, c := range p.conditions {
		want, err := Normalize(c.Value)
		if err != nil {
			return false
		}
		v, ok := doc[c.Field]
		if !ok {
			return false
		}
		got, err := Normalize(v)
		if err != nil || got != want {
			return false
		}
	}
	return true
}

// Render returns the raw query text equivalent to p using alias.
func (p Predicate) Render(alias string) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(alias)
	for i, c := range p.conditions {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(alias)
		b.WriteByte('.')
		b.WriteString(c.Field)
		b.WriteString(" = ")
		b.WriteString(FormatLiteral(c.Value))
	}
	return b.String()
}

// String renders p with DefaultAlias. ParseText(p.String()) yields an
// equivalent predicate.
func (p Predicate) String() string {
	return p.Render(DefaultAlias)
}

// Normalize converts a literal to the type encoding/json would decode it to.
// Only strings, booleans and finite numbers are supported.
func Normalize(v any) (any, error) {
	switch tv := v.(type) {
	case string, bool:
		return tv, nil
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return nil, errors.Malformed("non-finite number %v", tv)
		}
		return tv, nil
	case float32:
		return Normalize(float64(tv))
	case int:
		return float64(tv), nil
	case int8:
		return float64(tv), nil
	case int16:
		return float64(tv), nil
	case int32:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case uint:
		return float64(tv), nil
	case uint8:
		return float64(tv), nil
	case uint16:
		return float64(tv), nil
	case uint32:
		return float64(tv), nil
	case uint64:
		return float64(tv), nil
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return nil, errors.Malformed("invalid number %q", tv.String())
		}
		return f, nil
	case nil:
		return nil, errors.Malformed("null literals are not supported")
	}
	return nil, errors.Malformed("unsupported literal of type %T", v)
}

// FormatLiteral renders a literal in query text form. Strings use single
// quotes with '' escaping.
func FormatLiteral(v any) string {
	n, err := Normalize(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	switch tv := n.(type) {
	case string:
		return "'" + strings.ReplaceAll(tv, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(tv)
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", n)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
