package scheduler

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// protectedCalls defines pcall and xpcall on coroutines. The protected
// function runs on a coroutine of its own and every yield it makes is
// passed up through the caller, so a task can wait inside pcall.
const protectedCalls = `
local create, resume, status, yield = ...

local function passthrough(...)
	return ...
end

local function settle(co, handler, ok, ...)
	if not ok then
		if handler ~= nil then
			return false, (handler(...))
		end
		return false, ...
	end
	if status(co) == "dead" then
		return true, ...
	end
	return settle(co, handler, resume(co, yield(...)))
end

-- f is not tail called so that a native f keeps the body's frame.
local function body(f)
	return create(function(...)
		return passthrough(f(...))
	end)
end

local function pcall(f, ...)
	local co = body(f)
	return settle(co, nil, resume(co, ...))
end

local function xpcall(f, handler, ...)
	local co = body(f)
	return settle(co, handler, resume(co, ...))
end

return pcall, xpcall
`

// Open installs the task library into the scheduler's state:
//
//	task.spawn(fn, ...)         -> thread
//	task.delay(seconds, fn, ...) -> thread
//	task.wait(seconds = 0)      -> elapsed seconds
func (s *Scheduler) Open() {
	L := s.L
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"spawn": s.luaSpawn,
		"delay": s.luaDelay,
		"wait":  s.luaWait,
	})
	L.SetGlobal("task", mod)
	s.openProtectedCalls()
}

// openProtectedCalls replaces pcall and xpcall. The coroutine library is
// opened only to borrow its functions; the coroutine global is left as it
// was.
func (s *Scheduler) openProtectedCalls() {
	L := s.L
	prev := L.GetGlobal(lua.CoroutineLibName)
	L.Push(L.NewFunction(lua.OpenCoroutine))
	L.Call(0, 1)
	co := L.CheckTable(-1)
	L.Pop(1)
	L.SetGlobal(lua.CoroutineLibName, prev)

	fn, err := L.Load(strings.NewReader(protectedCalls), "=task")
	if err != nil {
		panic(err)
	}
	L.Push(fn)
	for _, name := range []string{"create", "resume", "status", "yield"} {
		L.Push(co.RawGetString(name))
	}
	L.Call(4, 2)
	L.SetGlobal("pcall", L.Get(-2))
	L.SetGlobal("xpcall", L.Get(-1))
	L.Pop(2)
}

func restArgs(L *lua.LState, from int) []lua.LValue {
	var args []lua.LValue
	for i := from; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	return args
}

func (s *Scheduler) luaSpawn(L *lua.LState) int {
	fn := L.CheckFunction(1)
	t := s.Spawn(fn, "task.spawn", restArgs(L, 2)...)
	L.Push(t.thread)
	return 1
}

func (s *Scheduler) luaDelay(L *lua.LState) int {
	d := float64(L.CheckNumber(1))
	fn := L.CheckFunction(2)
	t := s.Delay(d, fn, "task.delay", restArgs(L, 3)...)
	L.Push(t.thread)
	return 1
}

func (s *Scheduler) luaWait(L *lua.LState) int {
	return s.Wait(L, float64(L.OptNumber(1, 0)))
}
