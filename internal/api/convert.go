package api

// Convertible is implemented by wrapped domain types that can produce an
// API-safe representation. Implementations own any normalization needed to
// keep values consistent across the API boundary.
type Convertible[T any] interface {
	ToAPIType() (T, error)
}
