package script

import (
	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/datatypes"
)

const (
	vector3Type  = "Vector3"
	color3Type   = "Color3"
	enumItemType = "EnumItem"
	enumType     = "Enum"
)

func (r *Runtime) newVector3(L *lua.LState, v datatypes.Vector3) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	ud.Metatable = L.GetTypeMetatable(vector3Type)
	return ud
}

func checkVector3(L *lua.LState, n int) datatypes.Vector3 {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if v, ok := ud.Value.(datatypes.Vector3); ok {
			return v
		}
	}
	L.ArgError(n, "Vector3 expected")
	return datatypes.Vector3{}
}

func readOnly(L *lua.LState) int {
	L.RaiseError("attempt to modify a read-only value")
	return 0
}

func (r *Runtime) openVector3() {
	L := r.L
	mt := L.NewTypeMetatable(vector3Type)
	methods := map[string]lua.LGFunction{
		"Dot": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVector3(L, 1).Dot(checkVector3(L, 2))))
			return 1
		},
		"Cross": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Cross(checkVector3(L, 2))))
			return 1
		},
		"Lerp": func(L *lua.LState) int {
			v := checkVector3(L, 1).Lerp(checkVector3(L, 2), float32(L.CheckNumber(3)))
			L.Push(r.newVector3(L, v))
			return 1
		},
		"FuzzyEq": func(L *lua.LState) int {
			eps := float32(L.OptNumber(3, 1e-5))
			L.Push(lua.LBool(checkVector3(L, 1).FuzzyEq(checkVector3(L, 2), eps)))
			return 1
		},
		"Abs": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Abs()))
			return 1
		},
		"Floor": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Floor()))
			return 1
		},
		"Ceil": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Ceil()))
			return 1
		},
	}
	methodFns := map[string]*lua.LFunction{}
	for name, fn := range methods {
		methodFns[name] = L.NewFunction(fn)
	}

	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			v := checkVector3(L, 1)
			switch key := L.CheckString(2); key {
			case "X", "x":
				L.Push(lua.LNumber(v.X))
			case "Y", "y":
				L.Push(lua.LNumber(v.Y))
			case "Z", "z":
				L.Push(lua.LNumber(v.Z))
			case "Magnitude":
				L.Push(lua.LNumber(v.Magnitude()))
			case "Unit":
				L.Push(r.newVector3(L, v.Unit()))
			default:
				if fn, ok := methodFns[key]; ok {
					L.Push(fn)
				} else {
					L.RaiseError("%s is not a valid member of Vector3", key)
				}
			}
			return 1
		},
		"__newindex": readOnly,
		"__add": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Add(checkVector3(L, 2))))
			return 1
		},
		"__sub": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Sub(checkVector3(L, 2))))
			return 1
		},
		"__mul": func(L *lua.LState) int {
			L.Push(r.newVector3(L, r.vectorArith(L, datatypes.Vector3.Mul, datatypes.Vector3.Scale)))
			return 1
		},
		"__div": func(L *lua.LState) int {
			div := func(v datatypes.Vector3, s float32) datatypes.Vector3 { return v.Scale(1 / s) }
			L.Push(r.newVector3(L, r.vectorArith(L, datatypes.Vector3.Div, div)))
			return 1
		},
		"__unm": func(L *lua.LState) int {
			L.Push(r.newVector3(L, checkVector3(L, 1).Neg()))
			return 1
		},
		"__eq": func(L *lua.LState) int {
			L.Push(lua.LBool(checkVector3(L, 1) == checkVector3(L, 2)))
			return 1
		},
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString(checkVector3(L, 1).String()))
			return 1
		},
	})
	mt.RawSetString("__metatable", lua.LString("The metatable is locked"))

	ctor := L.NewTable()
	L.SetFuncs(ctor, map[string]lua.LGFunction{
		"new": func(L *lua.LState) int {
			v := datatypes.NewVector3(
				float32(L.OptNumber(1, 0)),
				float32(L.OptNumber(2, 0)),
				float32(L.OptNumber(3, 0)),
			)
			L.Push(r.newVector3(L, v))
			return 1
		},
	})
	ctor.RawSetString("zero", r.newVector3(L, datatypes.Vector3Zero))
	ctor.RawSetString("one", r.newVector3(L, datatypes.Vector3One))
	ctor.RawSetString("xAxis", r.newVector3(L, datatypes.Vector3XAxis))
	ctor.RawSetString("yAxis", r.newVector3(L, datatypes.Vector3YAxis))
	ctor.RawSetString("zAxis", r.newVector3(L, datatypes.Vector3ZAxis))
	L.SetGlobal(vector3Type, ctor)
}

// vectorArith applies a component-wise op for vector, vector operands and
// a scaling op when one side is a number.
func (r *Runtime) vectorArith(L *lua.LState,
	vv func(datatypes.Vector3, datatypes.Vector3) datatypes.Vector3,
	vs func(datatypes.Vector3, float32) datatypes.Vector3,
) datatypes.Vector3 {
	a, b := L.Get(1), L.Get(2)
	if n, ok := a.(lua.LNumber); ok {
		return vs(checkVector3(L, 2), float32(n))
	}
	if n, ok := b.(lua.LNumber); ok {
		return vs(checkVector3(L, 1), float32(n))
	}
	return vv(checkVector3(L, 1), checkVector3(L, 2))
}

func (r *Runtime) newColor3(L *lua.LState, c datatypes.Color3) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = c
	ud.Metatable = L.GetTypeMetatable(color3Type)
	return ud
}

func checkColor3(L *lua.LState, n int) datatypes.Color3 {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if c, ok := ud.Value.(datatypes.Color3); ok {
			return c
		}
	}
	L.ArgError(n, "Color3 expected")
	return datatypes.Color3{}
}

func (r *Runtime) openColor3() {
	L := r.L
	mt := L.NewTypeMetatable(color3Type)
	lerp := L.NewFunction(func(L *lua.LState) int {
		c := checkColor3(L, 1).Lerp(checkColor3(L, 2), float32(L.CheckNumber(3)))
		L.Push(r.newColor3(L, c))
		return 1
	})
	toHSV := L.NewFunction(func(L *lua.LState) int {
		h, s, v := checkColor3(L, 1).ToHSV()
		L.Push(lua.LNumber(h))
		L.Push(lua.LNumber(s))
		L.Push(lua.LNumber(v))
		return 3
	})
	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			c := checkColor3(L, 1)
			switch key := L.CheckString(2); key {
			case "R", "r":
				L.Push(lua.LNumber(c.R))
			case "G", "g":
				L.Push(lua.LNumber(c.G))
			case "B", "b":
				L.Push(lua.LNumber(c.B))
			case "Lerp":
				L.Push(lerp)
			case "ToHSV":
				L.Push(toHSV)
			default:
				L.RaiseError("%s is not a valid member of Color3", key)
			}
			return 1
		},
		"__newindex": readOnly,
		"__eq": func(L *lua.LState) int {
			L.Push(lua.LBool(checkColor3(L, 1) == checkColor3(L, 2)))
			return 1
		},
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString(checkColor3(L, 1).String()))
			return 1
		},
	})
	mt.RawSetString("__metatable", lua.LString("The metatable is locked"))

	ctor := L.NewTable()
	L.SetFuncs(ctor, map[string]lua.LGFunction{
		"new": func(L *lua.LState) int {
			c := datatypes.NewColor3(
				float32(L.OptNumber(1, 0)),
				float32(L.OptNumber(2, 0)),
				float32(L.OptNumber(3, 0)),
			)
			L.Push(r.newColor3(L, c))
			return 1
		},
		"fromRGB": func(L *lua.LState) int {
			c := datatypes.FromRGB(int(L.OptNumber(1, 0)), int(L.OptNumber(2, 0)), int(L.OptNumber(3, 0)))
			L.Push(r.newColor3(L, c))
			return 1
		},
		"fromHSV": func(L *lua.LState) int {
			c := datatypes.FromHSV(float32(L.CheckNumber(1)), float32(L.CheckNumber(2)), float32(L.CheckNumber(3)))
			L.Push(r.newColor3(L, c))
			return 1
		},
	})
	L.SetGlobal(color3Type, ctor)
}

// enumHandle is the payload of an Enum.<Name> userdata.
type enumHandle struct {
	enum *datatypes.Enum
}

func (r *Runtime) enumItem(L *lua.LState, it datatypes.EnumItem) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = it
	ud.Metatable = L.GetTypeMetatable(enumItemType)
	return ud
}

// openEnums installs the read-only Enum global.
func (r *Runtime) openEnums() {
	L := r.L

	itemMT := L.NewTypeMetatable(enumItemType)
	L.SetFuncs(itemMT, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			it := L.CheckUserData(1).Value.(datatypes.EnumItem)
			switch key := L.CheckString(2); key {
			case "Name":
				L.Push(lua.LString(it.Name))
			case "Value":
				L.Push(lua.LNumber(it.Value))
			case "EnumType":
				L.Push(lua.LString(it.EnumType))
			default:
				L.RaiseError("%s is not a valid member of %s", key, it.String())
			}
			return 1
		},
		"__newindex": readOnly,
		"__eq": func(L *lua.LState) int {
			a, okA := L.CheckUserData(1).Value.(datatypes.EnumItem)
			b, okB := L.CheckUserData(2).Value.(datatypes.EnumItem)
			L.Push(lua.LBool(okA && okB && a == b))
			return 1
		},
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString(L.CheckUserData(1).Value.(datatypes.EnumItem).String()))
			return 1
		},
	})
	itemMT.RawSetString("__metatable", lua.LString("The metatable is locked"))

	enumMT := L.NewTypeMetatable(enumType)
	getItems := L.NewFunction(func(L *lua.LState) int {
		e := L.CheckUserData(1).Value.(*enumHandle).enum
		t := L.NewTable()
		for _, it := range e.Items() {
			t.Append(r.enumItem(L, it))
		}
		L.Push(t)
		return 1
	})
	L.SetFuncs(enumMT, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			e := L.CheckUserData(1).Value.(*enumHandle).enum
			key := L.CheckString(2)
			if key == "GetEnumItems" {
				L.Push(getItems)
				return 1
			}
			it, ok := e.Item(key)
			if !ok {
				L.RaiseError("%s is not a valid member of Enum.%s", key, e.Name)
				return 0
			}
			L.Push(r.enumItem(L, it))
			return 1
		},
		"__newindex": readOnly,
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString("Enum." + L.CheckUserData(1).Value.(*enumHandle).enum.Name))
			return 1
		},
	})
	enumMT.RawSetString("__metatable", lua.LString("The metatable is locked"))

	enums := map[string]lua.LValue{}
	for _, name := range r.Enums.Names() {
		e, _ := r.Enums.Get(name)
		ud := L.NewUserData()
		ud.Value = &enumHandle{enum: e}
		ud.Metatable = enumMT
		enums[name] = ud
	}

	root := L.NewUserData()
	rootMT := L.NewTable()
	L.SetFuncs(rootMT, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			key := L.CheckString(2)
			e, ok := enums[key]
			if !ok {
				L.RaiseError("%s is not a valid EnumType", key)
				return 0
			}
			L.Push(e)
			return 1
		},
		"__newindex": readOnly,
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString("Enums"))
			return 1
		},
	})
	rootMT.RawSetString("__metatable", lua.LString("The metatable is locked"))
	root.Metatable = rootMT
	L.SetGlobal(enumType, root)
}
