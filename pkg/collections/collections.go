// Package collections holds small generic slice helpers.
package collections

// Apply maps fn over items, preserving order.
func Apply[T, V any](items []T, fn func(T) V) []V {
	result := make([]V, len(items))
	for i, item := range items {
		result[i] = fn(item)
	}

	return result
}

// ApplyVariadic is Apply over its trailing arguments.
func ApplyVariadic[T, V any](fn func(T) V, items ...T) []V {
	return Apply(items, fn)
}

// Filter returns the items keep accepts, in order.
func Filter[T any](items []T, keep func(T) bool) []T {
	var result []T

	for _, item := range items {
		if keep(item) {
			result = append(result, item)
		}
	}

	return result
}
