package engine

import (
	"io"
	"log/slog"
)

// World owns every instance it creates. Instances live in a slab of slots;
// a slot is reused after its instance is destroyed, with a new generation so
// that old Refs stop resolving.
type World struct {
	slots     []slot
	free      []uint32
	live      int
	hierarchy Hierarchy
	logger    *slog.Logger

	depth   int
	pending []func() error
}

type slot struct {
	gen  uint32
	inst *Instance
}

type Option func(*World)

// WithHierarchy sets the class lineage used by Instance.IsA.
func WithHierarchy(h Hierarchy) Option {
	return func(w *World) {
		if h != nil {
			w.hierarchy = h
		}
	}
}

// WithLogger sets the logger used for failed deferred mutations.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWorld(opts ...Option) *World {
	w := &World{
		hierarchy: defaultHierarchy{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// New creates a parentless instance of className. data is the class
// specific state returned by As.
func (w *World) New(className string, data any) *Instance {
	inst := newInstance(w, className, data)

	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		idx = uint32(len(w.slots))
		w.slots = append(w.slots, slot{})
	}
	s := &w.slots[idx]
	s.gen++
	s.inst = inst
	inst.ref = Ref{Index: idx, Gen: s.gen}
	w.live++
	return inst
}

// Get resolves r, returning nil for an empty or stale reference.
func (w *World) Get(r Ref) *Instance {
	if !r.IsValid() || int(r.Index) >= len(w.slots) {
		return nil
	}
	s := w.slots[r.Index]
	if s.gen != r.Gen {
		return nil
	}
	return s.inst
}

func (w *World) release(inst *Instance) {
	idx := inst.ref.Index
	if int(idx) >= len(w.slots) || w.slots[idx].inst != inst {
		return
	}
	w.slots[idx].inst = nil
	w.slots[idx].gen++
	w.free = append(w.free, idx)
	w.live--
}

// Len returns the number of live instances.
func (w *World) Len() int {
	return w.live
}

// Each visits live instances in slot order until fn returns false.
func (w *World) Each(fn func(*Instance) bool) {
	for _, s := range w.slots {
		if s.inst != nil && !fn(s.inst) {
			return
		}
	}
}

// FindByName returns the first live instance with the given name.
func (w *World) FindByName(name string) *Instance {
	var found *Instance
	w.Each(func(i *Instance) bool {
		if i.name == name {
			found = i
			return false
		}
		return true
	})
	return found
}

// Tagged returns every live instance carrying tag.
func (w *World) Tagged(tag string) []*Instance {
	var result []*Instance
	w.Each(func(i *Instance) bool {
		if i.HasTag(tag) {
			result = append(result, i)
		}
		return true
	})
	return result
}

// Mutating reports whether a structural change is dispatching events.
func (w *World) Mutating() bool {
	return w.depth > 0
}

// mutate runs op as the outermost structural change, or queues it when one
// is already running. Queued changes are applied in order once the
// outermost change has finished.
func (w *World) mutate(op func() error) error {
	if w.depth > 0 {
		w.pending = append(w.pending, op)
		return nil
	}
	w.depth++
	defer func() { w.depth-- }()

	err := op()
	for len(w.pending) > 0 {
		next := w.pending[0]
		w.pending = w.pending[1:]
		if perr := next(); perr != nil {
			w.logger.Warn("deferred mutation failed", "err", perr)
		}
	}
	return err
}
