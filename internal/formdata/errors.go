package formdata

import (
	"errors"
	"fmt"

	"github.com/starford/taxon/internal/apperr"
)

// ValidationError reports one rejected value.
type ValidationError struct {
	Key     Key
	Message string
}

func (e *ValidationError) Error() string {
	return e.Key.String() + ": " + e.Message
}

// Is makes every ValidationError match apperr.ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == apperr.ErrInvalid
}

// Errors accumulates validation messages per key across one validation pass.
// The zero value is not usable; create one with NewErrors.
type Errors map[Key][]string

// NewErrors returns an empty accumulator.
func NewErrors() Errors {
	return make(Errors)
}

// Add records msg against key.
func (e Errors) Add(key Key, msg string) {
	e[key] = append(e[key], msg)
}

// Addf records a formatted message against key.
func (e Errors) Addf(key Key, format string, args ...any) {
	e.Add(key, fmt.Sprintf(format, args...))
}

// Has reports whether any message was recorded against key.
func (e Errors) Has(key Key) bool {
	return len(e[key]) > 0
}

// Len returns the total number of messages.
func (e Errors) Len() int {
	n := 0
	for _, msgs := range e {
		n += len(msgs)
	}
	return n
}

// Fields returns the messages keyed by the dotted key path.
func (e Errors) Fields() map[string][]string {
	out := make(map[string][]string, len(e))
	for k, msgs := range e {
		if len(msgs) == 0 {
			continue
		}
		out[k.String()] = append([]string(nil), msgs...)
	}
	return out
}

// Err returns nil when nothing was recorded, otherwise every message joined
// as *ValidationError values in key order.
func (e Errors) Err() error {
	if e.Len() == 0 {
		return nil
	}
	keys := make([]Key, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sortKeys(keys)
	var errs []error
	for _, k := range keys {
		for _, msg := range e[k] {
			errs = append(errs, &ValidationError{Key: k, Message: msg})
		}
	}
	return errors.Join(errs...)
}

// FieldMessages collects the messages of every *ValidationError in err's
// tree, keyed by dotted key path.
func FieldMessages(err error) map[string][]string {
	out := make(map[string][]string)
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*ValidationError); ok {
			k := ve.Key.String()
			out[k] = append(out[k], ve.Message)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
