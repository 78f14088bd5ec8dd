package classes

import (
	"errors"

	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

func registerObject(r *reflection.Registry) {
	r.Class("Object", "").
		ReadOnly("ClassName", func(i *engine.Instance) (any, error) { return i.ClassName(), nil }).
		Property("Name",
			func(i *engine.Instance) (any, error) { return i.Name(), nil },
			func(i *engine.Instance, v any) error {
				s, err := toString(v)
				if err != nil {
					return err
				}
				i.SetName(s)
				return nil
			}).
		ReadOnly("Changed", func(i *engine.Instance) (any, error) { return i.Changed, nil }).
		Method("IsA", func(i *engine.Instance, a reflection.Args) ([]any, error) {
			name, err := a.String(0)
			if err != nil {
				return nil, err
			}
			return one(i.IsA(name))
		}).
		Method("GetDebugId", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
			return one(i.DebugID().String())
		})
}

func signalGetter(pick func(*engine.Instance) *engine.Signal) reflection.Getter {
	return func(i *engine.Instance) (any, error) { return pick(i), nil }
}

// finder adapts a query taking one string to a method.
func finder(q func(*engine.Instance, string) *engine.Instance) reflection.Method {
	return func(i *engine.Instance, a reflection.Args) ([]any, error) {
		s, err := a.String(0)
		if err != nil {
			return nil, err
		}
		return one(q(i, s))
	}
}

func registerInstance(r *reflection.Registry, env *Env) {
	c := r.Class("Instance", "Object")
	c.Property("Parent",
		func(i *engine.Instance) (any, error) { return i.Parent(), nil },
		func(i *engine.Instance, v any) error {
			if v == nil {
				return i.SetParent(nil)
			}
			p, ok := v.(*engine.Instance)
			if !ok {
				return typeError("Instance", v)
			}
			return i.SetParent(p)
		})
	c.Property("Archivable",
		func(i *engine.Instance) (any, error) { return i.Archivable(), nil },
		func(i *engine.Instance, v any) error {
			i.SetArchivable(toBool(v))
			return nil
		})

	c.ReadOnly("AncestryChanged", signalGetter(func(i *engine.Instance) *engine.Signal { return i.AncestryChanged }))
	c.ReadOnly("AttributeChanged", signalGetter(func(i *engine.Instance) *engine.Signal { return i.AttributeChanged }))
	c.ReadOnly("ChildAdded", signalGetter(func(i *engine.Instance) *engine.Signal { return i.ChildAdded }))
	c.ReadOnly("ChildRemoved", signalGetter(func(i *engine.Instance) *engine.Signal { return i.ChildRemoved }))
	c.ReadOnly("DescendantAdded", signalGetter(func(i *engine.Instance) *engine.Signal { return i.DescendantAdded }))
	c.ReadOnly("DescendantRemoving", signalGetter(func(i *engine.Instance) *engine.Signal { return i.DescendantRemoving }))
	c.ReadOnly("Destroying", signalGetter(func(i *engine.Instance) *engine.Signal { return i.Destroying }))

	c.Method("Destroy", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		i.Destroy()
		return none()
	})
	c.Method("ClearAllChildren", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		i.ClearAllChildren()
		return none()
	})
	c.Method("Clone", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		if env.Classes == nil {
			return nil, errors.New("Clone is unavailable before classes are bound")
		}
		clone, err := Clone(env.Classes, i)
		if err != nil {
			return nil, err
		}
		return one(clone)
	})

	c.Method("FindFirstChild", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		name, err := a.String(0)
		if err != nil {
			return nil, err
		}
		return one(i.FindFirstChild(name, a.Bool(1)))
	})
	c.Method("FindFirstChildOfClass", finder((*engine.Instance).FindFirstChildOfClass))
	c.Method("FindFirstChildWhichIsA", finder((*engine.Instance).FindFirstChildWhichIsA))
	c.Method("FindFirstAncestor", finder((*engine.Instance).FindFirstAncestor))
	c.Method("FindFirstAncestorOfClass", finder((*engine.Instance).FindFirstAncestorOfClass))
	c.Method("FindFirstAncestorWhichIsA", finder((*engine.Instance).FindFirstAncestorWhichIsA))
	c.Method("FindFirstDescendant", finder((*engine.Instance).FindFirstDescendant))
	c.Method("GetChildren", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		return one(i.GetChildren())
	})
	c.Method("GetDescendants", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		return one(i.GetDescendants())
	})
	c.Method("IsAncestorOf", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		d, err := a.OptInstance(0)
		if err != nil {
			return nil, err
		}
		return one(i.IsAncestorOf(d))
	})
	c.Method("IsDescendantOf", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		anc, err := a.OptInstance(0)
		if err != nil {
			return nil, err
		}
		return one(i.IsDescendantOf(anc))
	})
	c.Method("GetFullName", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		return one(i.GetFullName())
	})

	c.Method("SetAttribute", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		name, err := a.String(0)
		if err != nil {
			return nil, err
		}
		return none2(i.SetAttribute(name, a.Any(1)))
	})
	c.Method("GetAttribute", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		name, err := a.String(0)
		if err != nil {
			return nil, err
		}
		v, _ := i.GetAttribute(name)
		return one(v)
	})
	c.Method("GetAttributes", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		out := map[string]any{}
		for _, attr := range i.GetAttributes() {
			out[attr.Name] = attr.Value
		}
		return one(out)
	})

	c.Method("AddTag", tagMethod((*engine.Instance).AddTag))
	c.Method("RemoveTag", tagMethod((*engine.Instance).RemoveTag))
	c.Method("HasTag", func(i *engine.Instance, a reflection.Args) ([]any, error) {
		tag, err := a.String(0)
		if err != nil {
			return nil, err
		}
		return one(i.HasTag(tag))
	})
	c.Method("GetTags", func(i *engine.Instance, _ reflection.Args) ([]any, error) {
		return one(i.GetTags())
	})
}

func tagMethod(fn func(*engine.Instance, string)) reflection.Method {
	return func(i *engine.Instance, a reflection.Args) ([]any, error) {
		tag, err := a.String(0)
		if err != nil {
			return nil, err
		}
		fn(i, tag)
		return none()
	}
}

func none2(err error) ([]any, error) {
	return nil, err
}

func registerFolder(r *reflection.Registry) {
	r.Class("Folder", "Instance").Constructor(func(w *engine.World) (*engine.Instance, error) {
		return w.New("Folder", nil), nil
	})
}
