package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

type lifeState uint8

const (
	stateAlive lifeState = iota
	stateDestroying
	stateDestroyed
)

// Instance is a node of the scene tree. An instance owns its children;
// its parent is held as a Ref and never owns it. Class specific state lives
// in Data and is reached through As.
type Instance struct {
	world      *World
	ref        Ref
	className  string
	name       string
	debugID    uuid.UUID
	parent     Ref
	children   []*Instance
	attributes []Attribute
	tags       []string
	archivable bool
	state      lifeState

	Data any

	Changed            *Signal
	AncestryChanged    *Signal
	AttributeChanged   *Signal
	ChildAdded         *Signal
	ChildRemoved       *Signal
	DescendantAdded    *Signal
	DescendantRemoving *Signal
	Destroying         *Signal
}

func newInstance(w *World, className string, data any) *Instance {
	return &Instance{
		world:              w,
		className:          className,
		name:               className,
		debugID:            uuid.New(),
		archivable:         true,
		Data:               data,
		Changed:            NewSignal("Changed"),
		AncestryChanged:    NewSignal("AncestryChanged"),
		AttributeChanged:   NewSignal("AttributeChanged"),
		ChildAdded:         NewSignal("ChildAdded"),
		ChildRemoved:       NewSignal("ChildRemoved"),
		DescendantAdded:    NewSignal("DescendantAdded"),
		DescendantRemoving: NewSignal("DescendantRemoving"),
		Destroying:         NewSignal("Destroying"),
	}
}

// SignalOwner is implemented by class data carrying signals of its own.
// Destroy disconnects them together with the instance's.
type SignalOwner interface {
	Signals() []*Signal
}

// As returns the instance's class data as T.
func As[T any](i *Instance) (T, bool) {
	var zero T
	if i == nil {
		return zero, false
	}
	typed, ok := i.Data.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (i *Instance) World() *World         { return i.world }
func (i *Instance) Ref() Ref               { return i.ref }
func (i *Instance) ClassName() string      { return i.className }
func (i *Instance) Name() string           { return i.name }
func (i *Instance) DebugID() uuid.UUID     { return i.debugID }
func (i *Instance) ChangedSignal() *Signal { return i.Changed }
func (i *Instance) Archivable() bool       { return i.archivable }

// SetDebugID overrides the generated id, used when loading saved places.
func (i *Instance) SetDebugID(id uuid.UUID) {
	i.debugID = id
}

func (i *Instance) SetName(name string) {
	i.name = name
}

func (i *Instance) SetArchivable(v bool) {
	i.archivable = v
}

// FirePropertyChanged fires Changed with the property name.
func (i *Instance) FirePropertyChanged(prop string) {
	i.Changed.Fire(prop)
}

// Alive reports whether Destroy has not been called yet.
func (i *Instance) Alive() bool {
	return i.state == stateAlive
}

// Destroyed reports whether teardown has finished. An instance whose
// Destroying handlers are still running is neither Alive nor Destroyed.
func (i *Instance) Destroyed() bool {
	return i.state == stateDestroyed
}

// IsA is true for the instance's own class, every ancestor class, and the
// root "Object".
func (i *Instance) IsA(className string) bool {
	if className == RootClass || className == i.className {
		return true
	}
	return slices.Contains(i.world.hierarchy.Lineage(i.className), className)
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s: %s", i.className, i.name)
}

// Parent returns the current parent, or nil.
func (i *Instance) Parent() *Instance {
	return i.world.Get(i.parent)
}

// SetParent moves the instance under p, or detaches it when p is nil.
// Setting the current parent again is a no-op that fires nothing.
//
// Events fire in this order: DescendantRemoving on the old parent and its
// ancestors, ChildRemoved on the old parent, ChildAdded on the new parent,
// DescendantAdded on the new parent and its ancestors, and finally
// AncestryChanged on the instance itself.
//
// A SetParent issued from an event handler while another structural change
// of the same world is in progress is validated immediately and applied
// once that change completes.
func (i *Instance) SetParent(p *Instance) error {
	if err := i.checkParent(p); err != nil {
		return err
	}
	return i.world.mutate(func() error {
		return i.setParent(p)
	})
}

func (i *Instance) checkParent(p *Instance) error {
	if i.state != stateAlive {
		return fmt.Errorf("set parent of %s: %w", i.name, ErrDestroyed)
	}
	if p == nil {
		return nil
	}
	if p.world != i.world {
		return fmt.Errorf("set parent of %s: %w", i.name, ErrForeignWorld)
	}
	if p.state != stateAlive {
		return fmt.Errorf("set parent of %s to %s: %w", i.name, p.name, ErrDestroyed)
	}
	if p == i || i.IsAncestorOf(p) {
		return fmt.Errorf("set parent of %s to %s: %w", i.name, p.name, ErrCyclicParent)
	}
	return nil
}

func (i *Instance) setParent(p *Instance) error {
	if err := i.checkParent(p); err != nil {
		return err
	}
	old := i.Parent()
	if old == p {
		return nil
	}
	if old != nil {
		for a := old; a != nil; a = a.Parent() {
			a.DescendantRemoving.Fire(i)
		}
		old.removeChild(i)
	}

	i.parent = Ref{}
	if p != nil {
		i.parent = p.ref
		p.children = append(p.children, i)
	}

	if old != nil {
		old.ChildRemoved.Fire(i)
	}
	if p != nil {
		p.ChildAdded.Fire(i)
		for a := p; a != nil; a = a.Parent() {
			a.DescendantAdded.Fire(i)
		}
	}
	i.AncestryChanged.Fire(i)
	return nil
}

func (i *Instance) removeChild(child *Instance) {
	for idx, c := range i.children {
		if c == child {
			i.children = slices.Delete(i.children, idx, idx+1)
			return
		}
	}
}

// Destroy fires Destroying, destroys every descendant, detaches the
// instance from its parent, locks its Parent and disconnects its signals.
// Destroying an already destroyed instance does nothing.
func (i *Instance) Destroy() {
	if i.state != stateAlive {
		return
	}
	_ = i.world.mutate(func() error {
		i.destroy()
		return nil
	})
}

func (i *Instance) destroy() {
	if i.state != stateAlive {
		return
	}
	i.state = stateDestroying
	i.Destroying.Fire(i)

	for _, c := range slices.Clone(i.children) {
		c.destroy()
	}
	i.children = nil

	if old := i.Parent(); old != nil {
		for a := old; a != nil; a = a.Parent() {
			a.DescendantRemoving.Fire(i)
		}
		old.removeChild(i)
		i.parent = Ref{}
		old.ChildRemoved.Fire(i)
		i.AncestryChanged.Fire(i)
	}

	i.state = stateDestroyed
	for _, s := range i.signals() {
		s.DisconnectAll()
	}
	if o, ok := i.Data.(SignalOwner); ok {
		for _, s := range o.Signals() {
			s.DisconnectAll()
		}
	}
	i.world.release(i)
}

// ClearAllChildren destroys every child.
func (i *Instance) ClearAllChildren() {
	if len(i.children) == 0 {
		return
	}
	_ = i.world.mutate(func() error {
		for _, c := range slices.Clone(i.children) {
			c.destroy()
		}
		return nil
	})
}

func (i *Instance) signals() []*Signal {
	return []*Signal{
		i.Changed,
		i.AncestryChanged,
		i.AttributeChanged,
		i.ChildAdded,
		i.ChildRemoved,
		i.DescendantAdded,
		i.DescendantRemoving,
		i.Destroying,
	}
}

// GetChildren returns a copy of the children in insertion order.
func (i *Instance) GetChildren() []*Instance {
	return slices.Clone(i.children)
}

// NumChildren avoids the copy GetChildren makes.
func (i *Instance) NumChildren() int {
	return len(i.children)
}

// GetDescendants returns every descendant in pre-order, children visited in
// insertion order.
func (i *Instance) GetDescendants() []*Instance {
	var out []*Instance
	i.walk(func(d *Instance) bool {
		out = append(out, d)
		return false
	})
	return out
}

// walk visits descendants in pre-order until fn returns true.
func (i *Instance) walk(fn func(*Instance) bool) bool {
	for _, c := range i.children {
		if fn(c) || c.walk(fn) {
			return true
		}
	}
	return false
}

func (i *Instance) findChild(match func(*Instance) bool) *Instance {
	for _, c := range i.children {
		if match(c) {
			return c
		}
	}
	return nil
}

func (i *Instance) findAncestor(match func(*Instance) bool) *Instance {
	for a := i.Parent(); a != nil; a = a.Parent() {
		if match(a) {
			return a
		}
	}
	return nil
}

// FindFirstChild returns the first child with the given name. With
// recursive set it searches all descendants in pre-order.
func (i *Instance) FindFirstChild(name string, recursive bool) *Instance {
	if recursive {
		return i.FindFirstDescendant(name)
	}
	return i.findChild(func(c *Instance) bool { return c.name == name })
}

func (i *Instance) FindFirstChildOfClass(className string) *Instance {
	return i.findChild(func(c *Instance) bool { return c.className == className })
}

func (i *Instance) FindFirstChildWhichIsA(className string) *Instance {
	return i.findChild(func(c *Instance) bool { return c.IsA(className) })
}

func (i *Instance) FindFirstAncestor(name string) *Instance {
	return i.findAncestor(func(a *Instance) bool { return a.name == name })
}

func (i *Instance) FindFirstAncestorOfClass(className string) *Instance {
	return i.findAncestor(func(a *Instance) bool { return a.className == className })
}

func (i *Instance) FindFirstAncestorWhichIsA(className string) *Instance {
	return i.findAncestor(func(a *Instance) bool { return a.IsA(className) })
}

func (i *Instance) FindFirstDescendant(name string) *Instance {
	var found *Instance
	i.walk(func(d *Instance) bool {
		if d.name == name {
			found = d
			return true
		}
		return false
	})
	return found
}

// IsAncestorOf reports whether i is a strict ancestor of d.
func (i *Instance) IsAncestorOf(d *Instance) bool {
	if d == nil {
		return false
	}
	for a := d.Parent(); a != nil; a = a.Parent() {
		if a == i {
			return true
		}
	}
	return false
}

// IsDescendantOf reports whether a is a strict ancestor of i.
func (i *Instance) IsDescendantOf(a *Instance) bool {
	if a == nil {
		return false
	}
	return a.IsAncestorOf(i)
}

// GetFullName joins the names from the outermost ancestor down to i with
// dots. A root DataModel is left out, as scripts address it as game.
func (i *Instance) GetFullName() string {
	var parts []string
	for a := i; a != nil; a = a.Parent() {
		if a.className == "DataModel" && a.Parent() == nil && a != i {
			break
		}
		parts = append(parts, a.name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}
