package reflection

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownClass    = errors.New("unknown class")
	ErrUnknownProperty = errors.New("unknown property")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrReadOnly        = errors.New("property is read-only")
	// ErrAbstract is returned when constructing a class without a
	// constructor.
	ErrAbstract = errors.New("class cannot be created")
	// ErrConflict is returned when a class is registered twice with
	// different parents, or a member is registered twice.
	ErrConflict = errors.New("conflicting registration")
	// ErrFrozen is returned by any registration after Bind.
	ErrFrozen = errors.New("registry is bound")
	// ErrUnbound is returned by Bind when some classes have a missing or
	// cyclic parent chain.
	ErrUnbound = errors.New("unbound classes")
)

// ArgError describes a bad argument passed to a method.
type ArgError struct {
	Method string
	Index  int // 1-based
	Want   string
	Got    string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("bad argument #%d to '%s' (%s expected, got %s)", e.Index, e.Method, e.Want, e.Got)
}
