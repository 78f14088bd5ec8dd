package reflection

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"blockengine/internal/engine"
)

// Getter reads a property from an instance.
type Getter func(inst *engine.Instance) (any, error)

// Setter writes a property. A property registered without a Setter is
// read-only.
type Setter func(inst *engine.Instance, value any) error

// Method implements a callable member. It receives the instance the method
// was looked up on and the call arguments, and may return any number of
// values.
type Method func(inst *engine.Instance, args Args) ([]any, error)

// Constructor creates a new, parentless instance of a class.
type Constructor func(w *engine.World) (*engine.Instance, error)

// Property is a named accessor pair.
type Property struct {
	Name string
	Get  Getter
	Set  Setter
}

func (p *Property) ReadOnly() bool {
	return p.Set == nil
}

type descriptor struct {
	name        string
	parent      string
	props       map[string]*Property
	propOrder   []string
	methods     map[string]Method
	methodOrder []string
	ctor        Constructor
}

// Registry collects class descriptors. Classes may be registered in any
// order; Bind resolves parents once everything is in.
//
// Registration errors are returned to the caller and also kept, so Bind
// fails if any of them was ignored.
type Registry struct {
	classes map[string]*descriptor
	order   []string
	errs    []error
	bound   *Classes
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*descriptor)}
}

func (r *Registry) fail(err error) error {
	r.errs = append(r.errs, err)
	return err
}

func (r *Registry) lookup(class, what string) (*descriptor, error) {
	if r.bound != nil {
		return nil, r.fail(fmt.Errorf("%s %s: %w", what, class, ErrFrozen))
	}
	d, ok := r.classes[class]
	if !ok {
		return nil, r.fail(fmt.Errorf("%s on %s: %w", what, class, ErrUnknownClass))
	}
	return d, nil
}

// RegisterClass declares a class and the name of its parent ("" for a
// root). Registering the same class again with the same parent is a no-op.
func (r *Registry) RegisterClass(name, parent string) error {
	if r.bound != nil {
		return r.fail(fmt.Errorf("register %s: %w", name, ErrFrozen))
	}
	if name == "" {
		return r.fail(errors.New("register class: empty name"))
	}
	if d, ok := r.classes[name]; ok {
		if d.parent != parent {
			return r.fail(fmt.Errorf("register %s with parent %q, already has %q: %w", name, parent, d.parent, ErrConflict))
		}
		return nil
	}
	r.classes[name] = &descriptor{
		name:    name,
		parent:  parent,
		props:   make(map[string]*Property),
		methods: make(map[string]Method),
	}
	r.order = append(r.order, name)
	return nil
}

// AddProperty adds a property to a registered class. A nil setter makes it
// read-only.
func (r *Registry) AddProperty(class, prop string, get Getter, set Setter) error {
	d, err := r.lookup(class, "add property "+prop)
	if err != nil {
		return err
	}
	if get == nil {
		return r.fail(fmt.Errorf("add property %s.%s: nil getter", class, prop))
	}
	if _, ok := d.props[prop]; ok {
		return r.fail(fmt.Errorf("add property %s.%s: %w", class, prop, ErrConflict))
	}
	d.props[prop] = &Property{Name: prop, Get: get, Set: set}
	d.propOrder = append(d.propOrder, prop)
	return nil
}

func (r *Registry) AddMethod(class, name string, fn Method) error {
	d, err := r.lookup(class, "add method "+name)
	if err != nil {
		return err
	}
	if fn == nil {
		return r.fail(fmt.Errorf("add method %s.%s: nil function", class, name))
	}
	if _, ok := d.methods[name]; ok {
		return r.fail(fmt.Errorf("add method %s.%s: %w", class, name, ErrConflict))
	}
	d.methods[name] = fn
	d.methodOrder = append(d.methodOrder, name)
	return nil
}

// SetConstructor makes a class creatable by name. Classes without one are
// abstract.
func (r *Registry) SetConstructor(class string, ctor Constructor) error {
	d, err := r.lookup(class, "set constructor")
	if err != nil {
		return err
	}
	d.ctor = ctor
	return nil
}

// Class returns a builder that registers name under parent and chains
// member registration.
func (r *Registry) Class(name, parent string) *ClassBuilder {
	_ = r.RegisterClass(name, parent)
	return &ClassBuilder{r: r, name: name}
}

// ClassBuilder is a fluent front end to the registry. Errors are kept by
// the registry and reported by Bind.
type ClassBuilder struct {
	r    *Registry
	name string
}

func (b *ClassBuilder) Property(name string, get Getter, set Setter) *ClassBuilder {
	_ = b.r.AddProperty(b.name, name, get, set)
	return b
}

func (b *ClassBuilder) ReadOnly(name string, get Getter) *ClassBuilder {
	return b.Property(name, get, nil)
}

func (b *ClassBuilder) Method(name string, fn Method) *ClassBuilder {
	_ = b.r.AddMethod(b.name, name, fn)
	return b
}

func (b *ClassBuilder) Constructor(ctor Constructor) *ClassBuilder {
	_ = b.r.SetConstructor(b.name, ctor)
	return b
}

// Bind resolves every class against its parent. Each pass binds the
// classes whose parent is already bound (or who have none) until a pass
// makes no progress. Classes left over have a missing parent or sit on a
// cycle, and are reported together with every earlier registration error.
//
// After a successful Bind the registry is frozen; further calls return the
// same table.
func (r *Registry) Bind() (*Classes, error) {
	if r.bound != nil {
		return r.bound, nil
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}

	cs := &Classes{byName: make(map[string]*Class, len(r.classes))}
	remaining := slices.Clone(r.order)
	for len(remaining) > 0 {
		var next []string
		for _, name := range remaining {
			d := r.classes[name]
			var parent *Class
			if d.parent != "" {
				p, ok := cs.byName[d.parent]
				if !ok {
					next = append(next, name)
					continue
				}
				parent = p
			}
			c := newClass(d, parent)
			cs.byName[name] = c
			cs.order = append(cs.order, c)
		}
		if len(next) == len(remaining) {
			return nil, r.unbound(next)
		}
		remaining = next
	}

	r.bound = cs
	return cs, nil
}

func (r *Registry) unbound(names []string) error {
	reasons := make([]string, 0, len(names))
	for _, name := range names {
		reasons = append(reasons, fmt.Sprintf("%s (%s)", name, r.chainProblem(name)))
	}
	return fmt.Errorf("%w: %s", ErrUnbound, strings.Join(reasons, ", "))
}

// chainProblem walks the parent chain of an unbound class to explain why it
// never bound.
func (r *Registry) chainProblem(name string) string {
	seen := map[string]bool{name: true}
	for cur := r.classes[name]; ; {
		d, ok := r.classes[cur.parent]
		if !ok {
			return fmt.Sprintf("ancestor %s is not registered", cur.parent)
		}
		if seen[d.name] {
			return "cyclic parent chain"
		}
		seen[d.name] = true
		cur = d
	}
}
