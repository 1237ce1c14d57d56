// Package search implements the case-insensitive list filter and the
// debouncer that drives it from keystrokes.
package search

import "strings"

// TextFunc returns the searchable text fields of a record. Missing values
// are reported as empty strings.
type TextFunc[T any] func(T) []string

// Filter returns the records of items where the lowercased query is a
// substring of at least one lowercased text field. The result is always a
// fresh slice; an empty query returns a copy of items.
func Filter[T any](items []T, query string, text TextFunc[T]) []T {
	out := make([]T, 0, len(items))
	if query == "" {
		return append(out, items...)
	}
	q := strings.ToLower(query)
	for _, item := range items {
		if matches(text(item), q) {
			out = append(out, item)
		}
	}
	return out
}

func matches(fields []string, lowered string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowered) {
			return true
		}
	}
	return false
}
