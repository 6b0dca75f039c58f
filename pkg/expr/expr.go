// Package expr holds configuration values that are either fixed or computed
// at the moment they are used. A store keeps its where clause, resource kind
// and similar options as Values and resolves them against its scope right
// before building each request.
package expr

// Fn computes a value from a scope and call-specific arguments.
type Fn[T any] func(scope any, args ...any) T

// Value is either a literal or a deferred computation. The zero Value is unset
// and resolves to the zero T.
type Value[T any] struct {
	literal  T
	deferred Fn[T]
	set      bool
}

// Literal wraps a fixed value.
func Literal[T any](v T) Value[T] {
	return Value[T]{literal: v, set: true}
}

// Deferred wraps a function evaluated on every Resolve.
func Deferred[T any](fn Fn[T]) Value[T] {
	if fn == nil {
		return Value[T]{}
	}
	return Value[T]{deferred: fn, set: true}
}

// IsSet reports whether v holds a literal or a function.
func (v Value[T]) IsSet() bool { return v.set }

// IsDeferred reports whether v is computed at resolve time.
func (v Value[T]) IsDeferred() bool { return v.deferred != nil }

// Or returns v when set, otherwise fallback.
func (v Value[T]) Or(fallback Value[T]) Value[T] {
	if v.set {
		return v
	}
	return fallback
}

// Resolve evaluates v against scope, forwarding args to deferred values.
func Resolve[T any](v Value[T], scope any, args ...any) T {
	if v.deferred != nil {
		return v.deferred(scope, args...)
	}
	return v.literal
}
