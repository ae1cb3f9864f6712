// Package spec is a storage-agnostic description of filter, sort and paging
// criteria. Repositories compile it into their native query language.
package spec

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate is the closed set of filter terms: TextContains, Equals, Range,
// In and And. Composition is conjunctive only.
type Predicate interface {
	predicate()
}

// TextContains matches when any of Fields contains Term, ignoring case.
type TextContains struct {
	Fields []string
	Term   string
}

// Equals matches Field = Value.
type Equals struct {
	Field string
	Value any
}

// Range matches Min <= Field <= Max; a nil bound is open.
type Range struct {
	Field string
	Min   any
	Max   any
}

// In matches Field ∈ Values. An empty value list matches nothing.
type In struct {
	Field  string
	Values []any
}

// And matches when every term matches.
type And struct {
	Terms []Predicate
}

func (TextContains) predicate() {}
func (Equals) predicate()       {}
func (Range) predicate()        {}
func (In) predicate()           {}
func (And) predicate()          {}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidField reports whether name is a plain column identifier.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks every field name referenced by p.
func Validate(p Predicate) error {
	switch t := p.(type) {
	case nil:
		return nil
	case TextContains:
		if len(t.Fields) == 0 {
			return fmt.Errorf("spec: text search without fields")
		}
		for _, f := range t.Fields {
			if !ValidField(f) {
				return fmt.Errorf("spec: invalid field %q", f)
			}
		}
	case Equals:
		return checkField(t.Field)
	case Range:
		return checkField(t.Field)
	case In:
		return checkField(t.Field)
	case And:
		for _, term := range t.Terms {
			if err := Validate(term); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("spec: unsupported predicate %T", p)
	}
	return nil
}

func checkField(name string) error {
	if !ValidField(name) {
		return fmt.Errorf("spec: invalid field %q", name)
	}
	return nil
}

// ── Optional filter constructors ──
// Each returns nil when the filter was not supplied; Builder skips nil terms.

// Contains is a text search over fields; blank terms are skipped.
func Contains(term string, fields ...string) Predicate {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	return TextContains{Fields: fields, Term: term}
}

// Eq is an equality filter on an optional value.
func Eq[T any](field string, v *T) Predicate {
	if v == nil {
		return nil
	}
	return Equals{Field: field, Value: *v}
}

// Between is a range filter; nil when both bounds are absent.
func Between[T any](field string, lo, hi *T) Predicate {
	if lo == nil && hi == nil {
		return nil
	}
	r := Range{Field: field}
	if lo != nil {
		r.Min = *lo
	}
	if hi != nil {
		r.Max = *hi
	}
	return r
}

// OneOf is a membership filter.
func OneOf[T any](field string, values ...T) Predicate {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return In{Field: field, Values: vs}
}

// Builder collects optional terms into one conjunction.
type Builder struct {
	terms []Predicate
}

// Where starts a builder with the given terms.
func Where(terms ...Predicate) *Builder {
	return new(Builder).And(terms...)
}

// And appends terms, dropping nil ones and flattening nested conjunctions.
func (b *Builder) And(terms ...Predicate) *Builder {
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
		case And:
			b.And(v.Terms...)
		default:
			b.terms = append(b.terms, v)
		}
	}
	return b
}

// Build returns nil for no terms, the single term, or an And.
func (b *Builder) Build() Predicate {
	switch len(b.terms) {
	case 0:
		return nil
	case 1:
		return b.terms[0]
	}
	terms := make([]Predicate, len(b.terms))
	copy(terms, b.terms)
	return And{Terms: terms}
}
