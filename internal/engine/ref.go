package engine

import "fmt"

// Ref is a non-owning reference to an Instance held in a World. A Ref
// outlives the instance it names: once the instance is destroyed its slot
// generation moves on and Get returns nil.
//
// The zero Ref names nothing.
type Ref struct {
	Index uint32
	Gen   uint32
}

// Get resolves the reference. Returns nil if the reference is empty or the
// instance has been destroyed.
func (r Ref) Get(w *World) *Instance {
	if w == nil {
		return nil
	}
	return w.Get(r)
}

// IsValid returns true if the reference points to something. It does not
// check that the instance is still alive.
func (r Ref) IsValid() bool {
	return r.Gen != 0
}

func (r Ref) String() string {
	if !r.IsValid() {
		return "Ref(nil)"
	}
	return fmt.Sprintf("Ref(%d:%d)", r.Index, r.Gen)
}
