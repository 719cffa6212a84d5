/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"strings"
)

// Mode tells how a Spec was written.
type Mode int

const (
	// ModeStructured specs are built with Equal/And.
	ModeStructured Mode = iota
	// ModeRaw specs are parsed from query text.
	ModeRaw
)

func (m Mode) String() string {
	if m == ModeRaw {
		return "raw"
	}
	return "structured"
}

// Spec is a compiled query. Both modes carry the same Predicate, so a
// structured spec and the parse of its rendering select the same documents.
type Spec struct {
	mode  Mode
	text  string
	alias string
	pred  Predicate
}

// Structured wraps a predicate built in code.
func Structured(pred Predicate) Spec {
	return Spec{mode: ModeStructured, alias: DefaultAlias, pred: pred}
}

// All selects every document in a collection.
func All() Spec {
	return Structured(Predicate{})
}

// ParseText compiles raw query text. Errors match errors.ErrMalformed.
func ParseText(text string) (Spec, error) {
	alias, pred, err := parse(text)
	if err != nil {
		return Spec{}, err
	}
	return Spec{mode: ModeRaw, text: strings.TrimSpace(text), alias: alias, pred: pred}, nil
}

// MustParseText is like ParseText but panics on error. Use for fixed query text.
func MustParseText(text string) Spec {
	s, err := ParseText(text)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Spec) Mode() Mode {
	return s.mode
}

// Alias is the document alias used in the FROM clause.
func (s Spec) Alias() string {
	if s.alias == "" {
		return DefaultAlias
	}
	return s.alias
}

// Predicate returns the compiled filter.
func (s Spec) Predicate() Predicate {
	return s.pred
}

// Text returns the raw text of a raw spec, or the rendering of a structured one.
func (s Spec) Text() string {
	if s.mode == ModeRaw && s.text != "" {
		return s.text
	}
	return s.pred.Render(s.Alias())
}

// Validate reports an ErrMalformed error for unusable fields or literals.
func (s Spec) Validate() error {
	return s.pred.Validate()
}

// Where returns a copy of s with field = value added to the conjunction.
// The mode is kept; raw text is re-rendered from the extended predicate.
func (s Spec) Where(field string, value any) Spec {
	out := s
	out.pred = s.pred.And(field, value)
	if out.mode == ModeRaw {
		out.text = out.pred.Render(out.Alias())
	}
	return out
}

// Match reports whether doc satisfies the predicate of s.
func (s Spec) Match(doc map[string]any) bool {
	return s.pred.Match(doc)
}

func (s Spec) String() string {
	return s.Text()
}
