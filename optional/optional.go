// Package optional implements a value which may or may not be set.
package optional

// Optional is a value of type T which may be unset. The zero value is unset.
type Optional[T any] struct {
	value T
	set   bool
}

// Of returns an Optional holding v.
func Of[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Set stores v and marks the optional as set.
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.set = true
}

// Get returns the stored value. It returns the zero value of T when nothing
// has been set. Use HasValue to tell the two apart.
func (o Optional[T]) Get() T {
	return o.value
}

// HasValue reports whether a value has been set.
func (o Optional[T]) HasValue() bool {
	return o.set
}

// Clear unsets the optional.
func (o *Optional[T]) Clear() {
	var zero T
	o.value = zero
	o.set = false
}
