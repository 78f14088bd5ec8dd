package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// handle is the payload of an instance userdata. It never owns the
// instance: the tree does. inst is kept for equality and printing after
// the instance is gone; every other use resolves ref first.
type handle struct {
	ref  engine.Ref
	inst *engine.Instance
}

// readableAfterDestroy lists the members a destroyed instance still
// answers. Anything else raises.
var readableAfterDestroy = map[string]bool{
	"ClassName":      true,
	"Name":           true,
	"Parent":         true,
	"IsA":            true,
	"GetChildren":    true,
	"GetDescendants": true,
	"GetFullName":    true,
}

func destroyedError(h *handle) error {
	return fmt.Errorf("attempt to use destroyed %s", h.inst.ClassName())
}

// buildMetatables creates one metatable per bound class, parents first.
// Each one indexes through a closure over its own class record; equality,
// printing and writes share one function each, so handles of different
// classes still compare with ==.
func (r *Runtime) buildMetatables() {
	L := r.L
	r.eqFn = L.NewFunction(r.handleEq)
	r.tostringFn = L.NewFunction(r.handleToString)
	r.newindexFn = L.NewFunction(r.handleNewIndex)

	for _, c := range r.Classes.Topological() {
		mt := L.NewTypeMetatable(c.Name + "Meta")
		mt.RawSetString("__index", r.indexFunc(c))
		mt.RawSetString("__newindex", r.newindexFn)
		mt.RawSetString("__eq", r.eqFn)
		mt.RawSetString("__tostring", r.tostringFn)
		mt.RawSetString("__metatable", lua.LString("The metatable is locked"))
		mt.RawSetString("__type", lua.LString(c.Name))
		if c.Parent != nil {
			mt.RawSetString("__parent", r.metatables[c.Parent.Name])
		}
		r.metatables[c.Name] = mt
	}
}

// Handle returns the userdata for inst. The same instance always yields
// the same userdata, so handles work as table keys.
func (r *Runtime) Handle(L *lua.LState, inst *engine.Instance) lua.LValue {
	if inst == nil {
		return lua.LNil
	}
	if ud, ok := r.handles[inst.Ref()]; ok {
		return ud
	}
	mt, ok := r.metatables[inst.ClassName()]
	if !ok {
		r.logger.Warn("no metatable for class", "class", inst.ClassName())
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = &handle{ref: inst.Ref(), inst: inst}
	ud.Metatable = mt
	r.handles[inst.Ref()] = ud
	return ud
}

// Sweep forgets the userdata of destroyed instances. Scripts still holding
// one keep a dead handle.
func (r *Runtime) Sweep() {
	for ref := range r.handles {
		if r.World.Get(ref) == nil {
			delete(r.handles, ref)
		}
	}
}

func handleOf(lv lua.LValue) (*handle, bool) {
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	h, ok := ud.Value.(*handle)
	return h, ok
}

// CheckInstance returns the live instance at stack index n, raising a
// script error for anything else.
func (r *Runtime) CheckInstance(L *lua.LState, n int) *engine.Instance {
	h, ok := handleOf(L.Get(n))
	if !ok {
		L.TypeError(n, lua.LTUserData)
		return nil
	}
	inst := r.World.Get(h.ref)
	if inst == nil {
		L.RaiseError("%s", destroyedError(h).Error())
		return nil
	}
	return inst
}

// instanceFor is CheckInstance, except that a destroyed instance is still
// returned for the members in readableAfterDestroy.
func (r *Runtime) instanceFor(L *lua.LState, n int, member string) *engine.Instance {
	if h, ok := handleOf(L.Get(n)); ok && readableAfterDestroy[member] && r.World.Get(h.ref) == nil {
		return h.inst
	}
	return r.CheckInstance(L, n)
}

func (r *Runtime) indexFunc(c *reflection.Class) *lua.LFunction {
	return r.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		inst := r.instanceFor(L, 1, key)
		m, ok := c.Lookup(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		if m.Method != nil {
			L.Push(r.methodFunc(L, inst, key, m.Method))
			return 1
		}
		v, err := m.Property.Get(inst)
		if err != nil {
			L.RaiseError("%s.%s: %s", c.Name, key, err.Error())
			return 0
		}
		L.Push(r.ToLua(L, v))
		return 1
	})
}

func (r *Runtime) handleNewIndex(L *lua.LState) int {
	inst := r.CheckInstance(L, 1)
	key := L.CheckString(2)
	v, err := r.FromLua(L.Get(3))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if err := r.Classes.Set(inst, key, v); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (r *Runtime) handleEq(L *lua.LState) int {
	a, okA := handleOf(L.Get(1))
	b, okB := handleOf(L.Get(2))
	L.Push(lua.LBool(okA && okB && a.ref == b.ref))
	return 1
}

func (r *Runtime) handleToString(L *lua.LState) int {
	h, ok := handleOf(L.Get(1))
	if !ok {
		L.Push(lua.LString("Instance"))
		return 1
	}
	L.Push(lua.LString(h.inst.String()))
	return 1
}

// methodFunc binds a method to its receiver. Both obj:M(...) and obj.M(...)
// work: a leading argument that is the receiver itself is dropped.
func (r *Runtime) methodFunc(L *lua.LState, inst *engine.Instance, name string, fn reflection.Method) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		from := 1
		if h, ok := handleOf(L.Get(1)); ok && h.ref == inst.Ref() {
			from = 2
		}
		if inst.Destroyed() && !readableAfterDestroy[name] {
			L.RaiseError("attempt to use destroyed %s", inst.ClassName())
			return 0
		}
		args, err := r.args(L, from)
		if err != nil {
			L.RaiseError("%s: %s", name, err.Error())
			return 0
		}
		out, err := fn(inst, reflection.Args{Method: name, Values: args})
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		for _, v := range out {
			L.Push(r.ToLua(L, v))
		}
		return len(out)
	})
}
