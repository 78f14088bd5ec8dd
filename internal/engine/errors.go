package engine

import "errors"

var (
	// ErrCyclicParent is returned when a reparent would make an instance its
	// own ancestor.
	ErrCyclicParent = errors.New("cyclic parent")
	// ErrDestroyed is returned when mutating a destroyed instance, or when
	// parenting into one.
	ErrDestroyed = errors.New("instance is destroyed")
	// ErrForeignWorld is returned when parenting across worlds.
	ErrForeignWorld  = errors.New("instance belongs to another world")
	ErrAttributeName = errors.New("invalid attribute name")
	ErrAttributeType = errors.New("unsupported attribute type")
)
