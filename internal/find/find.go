// Package find holds the predicate lookups used wherever a backend returns a
// list and the caller needs the one entry matching a name or description.
package find

// First returns the first element of items satisfying match.
// The second result is false when nothing matched.
func First[T any](items []T, match func(T) bool) (T, bool) {
	for _, item := range items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Any reports whether some element of items satisfies match.
func Any[T any](items []T, match func(T) bool) bool {
	_, ok := First(items, match)
	return ok
}
