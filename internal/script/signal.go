package script

import (
	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/engine"
)

const (
	signalType     = "Signal"
	connectionType = "Connection"
)

func (r *Runtime) newSignal(L *lua.LState, s *engine.Signal) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = s
	ud.Metatable = L.GetTypeMetatable(signalType)
	return ud
}

func (r *Runtime) newConnection(L *lua.LState, c *engine.Connection) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = c
	ud.Metatable = L.GetTypeMetatable(connectionType)
	return ud
}

func checkSignal(L *lua.LState, n int) *engine.Signal {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if s, ok := ud.Value.(*engine.Signal); ok {
			return s
		}
	}
	L.ArgError(n, "Signal expected")
	return nil
}

func checkConnection(L *lua.LState, n int) *engine.Connection {
	if ud, ok := L.Get(n).(*lua.LUserData); ok {
		if c, ok := ud.Value.(*engine.Connection); ok {
			return c
		}
	}
	L.ArgError(n, "Connection expected")
	return nil
}

// listener adapts a script function to a signal listener. Each firing
// runs the function as its own task, started immediately, so handlers may
// call task.wait without holding up the code that fired the signal.
func (r *Runtime) listener(s *engine.Signal, fn *lua.LFunction) engine.Listener {
	label := "signal " + s.Name()
	return func(arg any) {
		r.Sched.Run(fn, label, r.ToLua(r.L, arg))
	}
}

func (r *Runtime) openSignals() {
	L := r.L

	methods := map[string]*lua.LFunction{
		"Connect": L.NewFunction(func(L *lua.LState) int {
			s := checkSignal(L, 1)
			fn := L.CheckFunction(2)
			L.Push(r.newConnection(L, s.Connect(r.listener(s, fn))))
			return 1
		}),
		"Once": L.NewFunction(func(L *lua.LState) int {
			s := checkSignal(L, 1)
			fn := L.CheckFunction(2)
			L.Push(r.newConnection(L, s.Once(r.listener(s, fn))))
			return 1
		}),
		"Fire": L.NewFunction(func(L *lua.LState) int {
			s := checkSignal(L, 1)
			arg, err := r.FromLua(L.Get(2))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			s.Fire(arg)
			return 0
		}),
		"DisconnectAll": L.NewFunction(func(L *lua.LState) int {
			checkSignal(L, 1).DisconnectAll()
			return 0
		}),
	}

	sigMT := L.NewTypeMetatable(signalType)
	L.SetFuncs(sigMT, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			checkSignal(L, 1)
			key := L.CheckString(2)
			fn, ok := methods[key]
			if !ok {
				L.RaiseError("%s is not a valid member of Signal", key)
				return 0
			}
			L.Push(fn)
			return 1
		},
		"__newindex": readOnly,
		"__tostring": func(L *lua.LState) int {
			L.Push(lua.LString("Signal " + checkSignal(L, 1).Name()))
			return 1
		},
	})
	sigMT.RawSetString("__metatable", lua.LString("The metatable is locked"))

	disconnect := L.NewFunction(func(L *lua.LState) int {
		checkConnection(L, 1).Disconnect()
		return 0
	})
	connMT := L.NewTypeMetatable(connectionType)
	L.SetFuncs(connMT, map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			c := checkConnection(L, 1)
			switch key := L.CheckString(2); key {
			case "Connected":
				L.Push(lua.LBool(c.Connected()))
			case "Disconnect":
				L.Push(disconnect)
			default:
				L.RaiseError("%s is not a valid member of Connection", key)
			}
			return 1
		},
		"__newindex": readOnly,
		"__tostring": func(L *lua.LState) int {
			checkConnection(L, 1)
			L.Push(lua.LString("Connection"))
			return 1
		},
	})
	connMT.RawSetString("__metatable", lua.LString("The metatable is locked"))
}
