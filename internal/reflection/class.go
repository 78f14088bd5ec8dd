package reflection

import (
	"fmt"
	"maps"
	"slices"

	"blockengine/internal/engine"
)

// Class is a bound class record. Parent links are resolved once by Bind;
// lookups walk them from the most derived class to the root.
type Class struct {
	Name   string
	Parent *Class

	props       map[string]*Property
	propOrder   []string
	methods     map[string]Method
	methodOrder []string
	ctor        Constructor
}

func newClass(d *descriptor, parent *Class) *Class {
	return &Class{
		Name:        d.name,
		Parent:      parent,
		props:       maps.Clone(d.props),
		propOrder:   slices.Clone(d.propOrder),
		methods:     maps.Clone(d.methods),
		methodOrder: slices.Clone(d.methodOrder),
		ctor:        d.ctor,
	}
}

// Abstract reports whether the class has no constructor.
func (c *Class) Abstract() bool {
	return c.ctor == nil
}

// Lineage returns the class name followed by its ancestors, nearest first.
func (c *Class) Lineage() []string {
	var out []string
	for k := c; k != nil; k = k.Parent {
		out = append(out, k.Name)
	}
	return out
}

func (c *Class) IsA(name string) bool {
	for k := c; k != nil; k = k.Parent {
		if k.Name == name {
			return true
		}
	}
	return false
}

// Member is the result of a name lookup: either a property or a method,
// together with the class that declared it.
type Member struct {
	Name     string
	Owner    *Class
	Property *Property
	Method   Method
}

// Lookup resolves name on the class chain. At each level properties are
// checked before methods, so a derived property shadows a base method and
// a derived method shadows a base property.
func (c *Class) Lookup(name string) (Member, bool) {
	for k := c; k != nil; k = k.Parent {
		if p, ok := k.props[name]; ok {
			return Member{Name: name, Owner: k, Property: p}, true
		}
		if m, ok := k.methods[name]; ok {
			return Member{Name: name, Owner: k, Method: m}, true
		}
	}
	return Member{}, false
}

// LookupProperty resolves name against properties only.
func (c *Class) LookupProperty(name string) (*Property, bool) {
	for k := c; k != nil; k = k.Parent {
		if p, ok := k.props[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// Properties returns every property visible on the class, root class
// first, each class in registration order. Shadowed properties appear once,
// at the position of the base declaration.
func (c *Class) Properties() []*Property {
	chain := []*Class{}
	for k := c; k != nil; k = k.Parent {
		chain = append(chain, k)
	}
	slices.Reverse(chain)

	var out []*Property
	index := map[string]int{}
	for _, k := range chain {
		for _, name := range k.propOrder {
			p := k.props[name]
			if i, ok := index[name]; ok {
				out[i] = p
				continue
			}
			index[name] = len(out)
			out = append(out, p)
		}
	}
	return out
}

// Methods returns the names of every method visible on the class, sorted.
func (c *Class) Methods() []string {
	seen := map[string]bool{}
	for k := c; k != nil; k = k.Parent {
		for _, name := range k.methodOrder {
			seen[name] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// BoundMethod is a method captured together with its receiver, the value a
// generic read returns for a method name.
type BoundMethod struct {
	Receiver *engine.Instance
	Name     string
	Fn       Method
}

func (m BoundMethod) Call(args ...any) ([]any, error) {
	return m.Fn(m.Receiver, Args{Method: m.Name, Values: args})
}

// Classes is the read-only table produced by Bind.
type Classes struct {
	byName map[string]*Class
	order  []*Class
}

func (cs *Classes) Class(name string) (*Class, bool) {
	c, ok := cs.byName[name]
	return c, ok
}

// Topological returns every class with parents before children.
func (cs *Classes) Topological() []*Class {
	return slices.Clone(cs.order)
}

// Lineage implements engine.Hierarchy.
func (cs *Classes) Lineage(className string) []string {
	c, ok := cs.byName[className]
	if !ok {
		return []string{className}
	}
	return c.Lineage()
}

// ClassOf returns the bound class of an instance.
func (cs *Classes) ClassOf(inst *engine.Instance) (*Class, error) {
	c, ok := cs.byName[inst.ClassName()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", inst.ClassName(), ErrUnknownClass)
	}
	return c, nil
}

func checkUsable(inst *engine.Instance) error {
	if inst == nil {
		return fmt.Errorf("nil instance: %w", engine.ErrDestroyed)
	}
	if inst.Destroyed() {
		return fmt.Errorf("%s %s: %w", inst.ClassName(), inst.Name(), engine.ErrDestroyed)
	}
	return nil
}

// Get reads name from inst. A property yields its value, a method yields a
// BoundMethod. found is false when no class on the chain declares name.
func (cs *Classes) Get(inst *engine.Instance, name string) (value any, found bool, err error) {
	if err := checkUsable(inst); err != nil {
		return nil, false, err
	}
	c, err := cs.ClassOf(inst)
	if err != nil {
		return nil, false, err
	}
	m, ok := c.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	if m.Method != nil {
		return BoundMethod{Receiver: inst, Name: name, Fn: m.Method}, true, nil
	}
	v, err := m.Property.Get(inst)
	if err != nil {
		return nil, true, fmt.Errorf("get %s.%s: %w", c.Name, name, err)
	}
	return v, true, nil
}

// Set writes name on inst and fires Changed with the property name.
// Methods are never written.
func (cs *Classes) Set(inst *engine.Instance, name string, value any) error {
	if err := checkUsable(inst); err != nil {
		return err
	}
	c, err := cs.ClassOf(inst)
	if err != nil {
		return err
	}
	p, ok := c.LookupProperty(name)
	if !ok {
		return fmt.Errorf("set %s.%s: %w", c.Name, name, ErrUnknownProperty)
	}
	if p.ReadOnly() {
		return fmt.Errorf("set %s.%s: %w", c.Name, name, ErrReadOnly)
	}
	if err := p.Set(inst, value); err != nil {
		return fmt.Errorf("set %s.%s: %w", c.Name, name, err)
	}
	inst.FirePropertyChanged(name)
	return nil
}

// Call invokes a method by name.
func (cs *Classes) Call(inst *engine.Instance, name string, args ...any) ([]any, error) {
	v, found, err := cs.Get(inst, name)
	if err != nil {
		return nil, err
	}
	m, ok := v.(BoundMethod)
	if !found || !ok {
		return nil, fmt.Errorf("call %s.%s: %w", inst.ClassName(), name, ErrUnknownMethod)
	}
	return m.Call(args...)
}

// Construct creates an instance of className in w.
func (cs *Classes) Construct(w *engine.World, className string) (*engine.Instance, error) {
	c, ok := cs.byName[className]
	if !ok {
		return nil, fmt.Errorf("create %s: %w", className, ErrUnknownClass)
	}
	if c.Abstract() {
		return nil, fmt.Errorf("create %s: %w", className, ErrAbstract)
	}
	inst, err := c.ctor(w)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", className, err)
	}
	return inst, nil
}
