package script

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
	"blockengine/internal/scheduler"
)

// Runtime exposes a World to Lua. It owns the Lua state; the scheduler
// shares it.
type Runtime struct {
	L       *lua.LState
	World   *engine.World
	Classes *reflection.Classes
	Sched   *scheduler.Scheduler
	Enums   *datatypes.EnumRegistry

	logger       *slog.Logger
	out          io.Writer
	moduleSource ModuleSource

	metatables map[string]*lua.LTable
	handles    map[engine.Ref]*lua.LUserData
	modules    map[engine.Ref]lua.LValue
	loading    map[engine.Ref]bool

	eqFn       *lua.LFunction
	tostringFn *lua.LFunction
	newindexFn *lua.LFunction
}

// ModuleSource returns the source a require call should run for module,
// or an error explaining why module cannot be required.
type ModuleSource func(module *engine.Instance) (string, error)

type Options struct {
	Logger *slog.Logger
	// Output receives print. Defaults to stdout.
	Output io.Writer
	Enums  *datatypes.EnumRegistry
	// ModuleSource enables the require global.
	ModuleSource ModuleSource
	// SchedulerOptions are passed to the scheduler created on the
	// runtime's state.
	SchedulerOptions []scheduler.Option
}

// New creates a Lua state with the base, table, string, math and os
// libraries, the engine globals and a metatable for every bound class.
func New(w *engine.World, classes *reflection.Classes, opts Options) *Runtime {
	// Every task and every pcall gets a thread, so stacks start small and
	// grow on demand.
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		RegistrySize:        1024,
		RegistryMaxSize:     lua.RegistrySize * 16,
		MinimizeStackMemory: true,
	})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath, lua.OpenOs} {
		open(L)
	}

	r := &Runtime{
		L:            L,
		World:        w,
		Classes:      classes,
		Enums:        opts.Enums,
		logger:       opts.Logger,
		out:          opts.Output,
		moduleSource: opts.ModuleSource,
		metatables:   make(map[string]*lua.LTable),
		handles:      make(map[engine.Ref]*lua.LUserData),
		modules:      make(map[engine.Ref]lua.LValue),
		loading:      make(map[engine.Ref]bool),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.Enums == nil {
		r.Enums = datatypes.DefaultEnums()
	}

	schedOpts := append([]scheduler.Option{scheduler.WithLogger(r.logger)}, opts.SchedulerOptions...)
	r.Sched = scheduler.New(L, schedOpts...)
	r.Sched.Open()

	r.buildMetatables()
	r.openVector3()
	r.openColor3()
	r.openEnums()
	r.openSignals()
	r.openGlobals()
	return r
}

func (r *Runtime) Close() {
	r.Sched.Close()
	r.L.Close()
}

func (r *Runtime) openGlobals() {
	L := r.L
	L.SetGlobal("print", L.NewFunction(r.luaPrint))
	L.SetGlobal("typeof", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(r.TypeOf(L.CheckAny(1))))
		return 1
	}))
	L.SetGlobal("__RUN_CHUNK", L.NewFunction(r.luaRunChunk))

	inst := L.NewTable()
	L.SetFuncs(inst, map[string]lua.LGFunction{
		"new": r.luaInstanceNew,
	})
	L.SetGlobal("Instance", inst)

	if r.moduleSource != nil {
		L.SetGlobal("require", L.NewFunction(r.luaRequire))
	}
}

// require(module) runs a ModuleScript once and returns its cached value.
func (r *Runtime) luaRequire(L *lua.LState) int {
	lv := L.Get(1)
	if _, ok := handleOf(lv); !ok {
		L.RaiseError("require expects a ModuleScript, got %s", r.TypeOf(lv))
		return 0
	}
	module := r.CheckInstance(L, 1)
	src, err := r.moduleSource(module)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	v, err := r.Require(L, module, src)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

func (r *Runtime) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	fmt.Fprintln(r.out, strings.Join(parts, "\t"))
	return 0
}

// Instance.new(className [, parent])
func (r *Runtime) luaInstanceNew(L *lua.LState) int {
	className := L.CheckString(1)
	var parent *engine.Instance
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		parent = r.CheckInstance(L, 2)
	}
	inst, err := r.Classes.Construct(r.World, className)
	if err != nil {
		L.RaiseError("Cannot create instance of '%s': %s", className, err.Error())
		return 0
	}
	if parent != nil {
		if err := inst.SetParent(parent); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
	}
	L.Push(r.Handle(L, inst))
	return 1
}

// __RUN_CHUNK(source, name) -> ok, err compiles source and starts it as a
// task right away. ok is false if it does not compile or fails before its
// first wait.
func (r *Runtime) luaRunChunk(L *lua.LState) int {
	src := L.CheckString(1)
	name := L.OptString(2, "chunk")
	fn, err := r.Compile(name, src, r.NewEnv())
	if err == nil {
		if t := r.Sched.Run(fn, name); t.Err != nil {
			err = t.Err
		}
	}
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// NewEnv returns a fresh global table for one script. Reads fall through to
// the shared globals; writes stay in the script's own table.
func (r *Runtime) NewEnv() *lua.LTable {
	env := r.L.NewTable()
	mt := r.L.NewTable()
	mt.RawSetString("__index", r.L.G.Global)
	r.L.SetMetatable(env, mt)
	return env
}

// Compile loads source into a function bound to env.
func (r *Runtime) Compile(name, source string, env *lua.LTable) (*lua.LFunction, error) {
	fn, err := r.L.Load(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	if env != nil {
		fn.Env = env
	}
	return fn, nil
}

// RunSource compiles source in its own environment and schedules it as a
// task for the next Step. scriptInst, if given, is visible as script.
func (r *Runtime) RunSource(name, source string, scriptInst *engine.Instance) (*scheduler.Task, error) {
	env := r.NewEnv()
	if scriptInst != nil {
		env.RawSetString("script", r.Handle(r.L, scriptInst))
	}
	fn, err := r.Compile(name, source, env)
	if err != nil {
		return nil, err
	}
	return r.Sched.Spawn(fn, name), nil
}

// Require runs a module's source once and caches its single return value
// per module instance. The chunk runs to completion on a coroutine of its
// own, so a task.wait in it fails the require instead of suspending.
func (r *Runtime) Require(L *lua.LState, module *engine.Instance, source string) (lua.LValue, error) {
	ref := module.Ref()
	if v, ok := r.modules[ref]; ok {
		return v, nil
	}
	name := module.GetFullName()
	if r.loading[ref] {
		return nil, fmt.Errorf("recursive require of %s", name)
	}
	r.loading[ref] = true
	defer delete(r.loading, ref)

	env := r.NewEnv()
	env.RawSetString("script", r.Handle(L, module))
	fn, err := r.Compile(name, source, env)
	if err != nil {
		return nil, err
	}
	rets, err := r.Sched.Call(L, fn)
	if err != nil {
		return nil, fmt.Errorf("require %s: %w", name, err)
	}
	v := rets[0]
	r.modules[ref] = v
	return v, nil
}
