package option

import (
	"fmt"
)

// Option is a value that may or may not be set.
type Option[T any] struct {
	Value   T
	Present bool
}

func (o Option[T]) String() string {
	if o.Present {
		return fmt.Sprintf("%v", o.Value)
	}
	return "None"
}

func (o Option[T]) GetOrDefault(def T) T {
	if o.Present {
		return o.Value
	}
	return def
}

// GetOrElse is like GetOrDefault but only computes the default when needed.
func (o Option[T]) GetOrElse(fn func() T) T {
	if o.Present {
		return o.Value
	}
	return fn()
}

func (o Option[T]) IsPresent() bool {
	return o.Present
}

func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// AsOptional returns an Option where a zero value T is considered None
// and any other value is considered Some.
//
//	AsOptional("") == None()
//	AsOptional("/src") == Some("/src")
func AsOptional[T comparable](v T) Option[T] {
	var zero T
	if v == zero {
		return None[T]()
	}
	return Some[T](v)
}

// Some returns an Option with the given value and present set to true.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Present: true}
}

// None returns an Option with no value set.
func None[T any]() Option[T] {
	return Option[T]{Present: false}
}
