// Package filter provides generic, key-based predicate matching used by the
// resource search fallback when a server has no search tool of its own.
package filter

import (
	"strings"
)

// Predicate reports whether item satisfies the filter value for one key.
type Predicate[T any] func(item T, filterValue string) bool

// Options holds the configured matchers for a Match call.
type Options[T any] struct {
	matchers map[string]Predicate[T]
}

// Option configures filter Options.
type Option[T any] func(*Options[T]) error

func defaultOptions[T any]() Options[T] {
	return Options[T]{
		matchers: make(map[string]Predicate[T]),
	}
}

// NewOptions creates Options with defaults and applies the given options.
// Nil options are skipped.
func NewOptions[T any](opt ...Option[T]) (Options[T], error) {
	opts := defaultOptions[T]()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return Options[T]{}, err
		}
	}
	return opts, nil
}

// NormalizeString lowercases s and trims surrounding whitespace, so that
// filter comparisons are case- and whitespace-insensitive.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSlice returns a new slice with every value normalized via
// NormalizeString.
func NormalizeSlice(s []string) []string {
	s2 := make([]string, len(s))
	for i := range s {
		s2[i] = NormalizeString(s[i])
	}
	return s2
}

// ValueProvider extracts a single string from an item, e.g. a resource's URI.
type ValueProvider[T any] func(T) string

// ValuesProvider extracts multiple candidate strings from an item, e.g. a
// resource's URI, name and description together.
type ValuesProvider[T any] func(T) []string

// Equals returns a Predicate that matches when the provided value equals the
// filter value after normalization.
func Equals[T any](provider ValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		return NormalizeString(provider(item)) == NormalizeString(val)
	}
}

// Partial returns a Predicate that matches when the provided value contains
// the filter value as a substring after normalization.
func Partial[T any](provider ValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		return strings.Contains(NormalizeString(provider(item)), NormalizeString(val))
	}
}

// PartialAll returns a Predicate that matches when every comma-separated term
// in the filter value is a substring of at least one of the provided values.
// A query with a single term therefore matches if any candidate field
// contains it.
func PartialAll[T any](provider ValuesProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		terms := NormalizeSlice(strings.Split(val, ","))
		candidates := NormalizeSlice(provider(item))

		for _, term := range terms {
			found := false
			for _, c := range candidates {
				if strings.Contains(c, term) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
}

// EqualsAny returns a Predicate that matches when any of the provided values
// contains the filter value after normalization.
func EqualsAny[T any](providers ...ValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		q := NormalizeString(val)
		for _, p := range providers {
			if strings.Contains(NormalizeString(p(item)), q) {
				return true
			}
		}
		return false
	}
}

// WithMatcher registers the Predicate for a filter key. Keys are normalized,
// so "Query" and "query" address the same matcher.
func WithMatcher[T any](key string, value Predicate[T]) Option[T] {
	return func(o *Options[T]) error {
		o.matchers[NormalizeString(key)] = value
		return nil
	}
}

// WithMatchers registers multiple matchers at once.
func WithMatchers[T any](m map[string]Predicate[T]) Option[T] {
	return func(o *Options[T]) error {
		for k, v := range m {
			o.matchers[NormalizeString(k)] = v
		}
		return nil
	}
}

// Match reports whether item satisfies every filter entry that has a
// registered matcher. Empty keys and keys without a matcher are ignored, so a
// nil or empty filter map matches everything.
func Match[T any](item T, filters map[string]string, opts ...Option[T]) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	filterOpts, err := NewOptions(opts...)
	if err != nil {
		return false, err
	}

	for key, val := range filters {
		k := NormalizeString(key)
		if k == "" {
			continue
		}

		matcher, ok := filterOpts.matchers[k]
		if !ok {
			continue
		}
		if !matcher(item, val) {
			return false, nil
		}
	}
	return true, nil
}
