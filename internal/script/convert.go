package script

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

// ToLua converts a Go value produced by the object model into a script
// value. Unknown types become their fmt representation.
func (r *Runtime) ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case float64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case *engine.Instance:
		if x == nil {
			return lua.LNil
		}
		return r.Handle(L, x)
	case []*engine.Instance:
		t := L.CreateTable(len(x), 0)
		for _, inst := range x {
			t.Append(r.Handle(L, inst))
		}
		return t
	case []string:
		t := L.CreateTable(len(x), 0)
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.CreateTable(len(x), 0)
		for i, e := range x {
			t.RawSetInt(i+1, r.ToLua(L, e))
		}
		return t
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := L.CreateTable(0, len(x))
		for _, k := range keys {
			t.RawSetString(k, r.ToLua(L, x[k]))
		}
		return t
	case datatypes.Vector3:
		return r.newVector3(L, x)
	case datatypes.Color3:
		return r.newColor3(L, x)
	case datatypes.EnumItem:
		return r.enumItem(L, x)
	case *engine.Signal:
		if x == nil {
			return lua.LNil
		}
		return r.newSignal(L, x)
	case *engine.Connection:
		return r.newConnection(L, x)
	case reflection.BoundMethod:
		return r.methodFunc(L, x.Receiver, x.Name, x.Fn)
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// FromLua converts a script value into the Go value the object model
// expects. Tables and functions pass through untouched. A handle to a
// destroyed instance is an error.
func (r *Runtime) FromLua(lv lua.LValue) (any, error) {
	switch x := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		return float64(x), nil
	case lua.LString:
		return string(x), nil
	case *lua.LUserData:
		switch v := x.Value.(type) {
		case *handle:
			inst := r.World.Get(v.ref)
			if inst == nil {
				return nil, destroyedError(v)
			}
			return inst, nil
		case datatypes.Vector3:
			return v, nil
		case datatypes.Color3:
			return v, nil
		case datatypes.EnumItem:
			return v, nil
		case *engine.Signal:
			return v, nil
		case *engine.Connection:
			return v, nil
		}
		return x, nil
	default:
		return lv, nil
	}
}

// args collects the call arguments from index from onwards.
func (r *Runtime) args(L *lua.LState, from int) ([]any, error) {
	var out []any
	for i := from; i <= L.GetTop(); i++ {
		v, err := r.FromLua(L.Get(i))
		if err != nil {
			return nil, fmt.Errorf("argument #%d: %w", i-from+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// TypeOf names a script value's type, seeing through engine userdata.
func (r *Runtime) TypeOf(lv lua.LValue) string {
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return lv.Type().String()
	}
	switch ud.Value.(type) {
	case *handle:
		return "Instance"
	case datatypes.Vector3:
		return "Vector3"
	case datatypes.Color3:
		return "Color3"
	case datatypes.EnumItem:
		return "EnumItem"
	case *enumHandle:
		return "Enum"
	case *engine.Signal:
		return "Signal"
	case *engine.Connection:
		return "Connection"
	}
	return "userdata"
}
