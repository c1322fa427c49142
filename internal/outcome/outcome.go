// Package outcome provides a success-or-failure result value for fallible
// domain operations.
//
// A failed Outcome carries an error whose message is meant for users. Map and
// Chain short-circuit on failure: the failure is passed through unchanged and
// the supplied function is never called.
package outcome

// Outcome holds either a value or the error that prevented producing one
type Outcome[T any] struct {
	value T
	err   error
}

// Success wraps a value
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{value: value}
}

// Failure wraps an error. A nil error is not a failure and yields the zero
// value as a success.
func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{err: err}
}

// Ok reports whether the outcome is a success
func (o Outcome[T]) Ok() bool {
	return o.err == nil
}

// Err returns the failure, or nil on success
func (o Outcome[T]) Err() error {
	return o.err
}

// Get returns the value and the failure
func (o Outcome[T]) Get() (T, error) {
	return o.value, o.err
}

// Message returns the failure message, or "" on success
func (o Outcome[T]) Message() string {
	if o.err == nil {
		return ""
	}
	return o.err.Error()
}

// Map applies f to a successful value
func Map[T, U any](o Outcome[T], f func(T) U) Outcome[U] {
	if o.err != nil {
		return Failure[U](o.err)
	}
	return Success(f(o.value))
}

// Chain applies a fallible f to a successful value
func Chain[T, U any](o Outcome[T], f func(T) Outcome[U]) Outcome[U] {
	if o.err != nil {
		return Failure[U](o.err)
	}
	return f(o.value)
}

// From builds an outcome from a conventional (value, error) pair
func From[T any](value T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(value)
}
