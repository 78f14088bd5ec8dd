package classes

import (
	"fmt"

	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// Clone copies inst and its Archivable descendants through the generic
// property path. The copy has no parent. A non-Archivable inst yields nil.
func Clone(cs *reflection.Classes, inst *engine.Instance) (*engine.Instance, error) {
	if !inst.Archivable() {
		return nil, nil
	}
	if IsService(inst.ClassName()) {
		return nil, fmt.Errorf("cannot clone service %s", inst.ClassName())
	}
	c, err := cs.ClassOf(inst)
	if err != nil {
		return nil, err
	}
	out, err := cs.Construct(inst.World(), inst.ClassName())
	if err != nil {
		return nil, err
	}
	out.SetName(inst.Name())
	for _, p := range c.Properties() {
		if p.ReadOnly() || p.Name == "Parent" || p.Name == "Name" {
			continue
		}
		v, err := p.Get(inst)
		if err != nil {
			out.Destroy()
			return nil, err
		}
		if err := p.Set(out, v); err != nil {
			out.Destroy()
			return nil, fmt.Errorf("clone %s.%s: %w", inst.ClassName(), p.Name, err)
		}
	}
	for _, a := range inst.GetAttributes() {
		if err := out.SetAttribute(a.Name, a.Value); err != nil {
			out.Destroy()
			return nil, err
		}
	}
	for _, tag := range inst.GetTags() {
		out.AddTag(tag)
	}
	for _, child := range inst.GetChildren() {
		cc, err := Clone(cs, child)
		if err != nil {
			out.Destroy()
			return nil, err
		}
		if cc == nil {
			continue
		}
		if err := cc.SetParent(out); err != nil {
			out.Destroy()
			return nil, err
		}
	}
	return out, nil
}
