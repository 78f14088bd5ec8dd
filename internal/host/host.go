// Package host wires the object model, the class catalogue, the script
// runtime and the scheduler into one running place.
package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"blockengine/internal/classes"
	"blockengine/internal/config"
	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/place"
	"blockengine/internal/reflection"
	"blockengine/internal/scheduler"
	"blockengine/internal/script"
)

// Host owns one world, its DataModel and the Lua state scripts run in.
type Host struct {
	Config    config.Config
	Logger    *slog.Logger
	Classes   *reflection.Classes
	Enums     *datatypes.EnumRegistry
	World     *engine.World
	Runtime   *script.Runtime
	DataModel *engine.Instance
	Workspace *engine.Instance

	env      *classes.Env
	failures []error
}

type Options struct {
	Config config.Config
	Logger *slog.Logger
	// Output receives script print output. Defaults to stdout.
	Output io.Writer
	// Clock overrides the clock chosen by the config.
	Clock scheduler.Clock
}

// Bind registers the built-in classes and binds them. A catalogue that
// does not bind is a programming error the caller should treat as fatal.
func Bind(env *classes.Env) (*reflection.Classes, error) {
	r := reflection.NewRegistry()
	classes.Register(r, env)
	cs, err := r.Bind()
	if err != nil {
		return nil, fmt.Errorf("bind classes: %w", err)
	}
	env.Classes = cs
	return cs, nil
}

func New(opts Options) (*Host, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Host{Config: opts.Config, Logger: logger}

	h.env = &classes.Env{Executor: h}
	cs, err := Bind(h.env)
	if err != nil {
		return nil, err
	}
	h.Classes = cs
	h.Enums = h.env.Enums
	h.World = engine.NewWorld(engine.WithHierarchy(cs), engine.WithLogger(logger))

	clock := opts.Clock
	if clock == nil {
		clock = newClock(opts.Config.Scheduler.Clock)
	}
	h.Runtime = script.New(h.World, cs, script.Options{
		Logger:       logger,
		Output:       opts.Output,
		Enums:        h.Enums,
		ModuleSource: h.moduleSource,
		SchedulerOptions: []scheduler.Option{
			scheduler.WithClock(clock),
			scheduler.WithStagnationLimit(opts.Config.Scheduler.StagnationLimit),
			scheduler.WithErrorHandler(h.taskFailed),
		},
	})

	dm, err := classes.NewDataModel(h.World)
	if err != nil {
		h.Runtime.Close()
		return nil, err
	}
	h.DataModel = dm
	h.Workspace = classes.FindService(dm, "Workspace")

	L := h.Runtime.L
	L.SetGlobal("game", h.Runtime.Handle(L, dm))
	L.SetGlobal("workspace", h.Runtime.Handle(L, h.Workspace))
	return h, nil
}

func newClock(kind string) scheduler.Clock {
	if kind == "virtual" {
		return scheduler.NewVirtualClock()
	}
	return scheduler.NewWallClock()
}

func (h *Host) Close() {
	h.Runtime.Close()
}

func (h *Host) taskFailed(t *scheduler.Task, err error) {
	h.failures = append(h.failures, fmt.Errorf("%s: %w", t.Label, err))
}

// Failures returns the script errors seen so far.
func (h *Host) Failures() []error {
	return h.failures
}

// Execute implements classes.Executor: the script starts on the next Step
// with itself bound to script.
func (h *Host) Execute(inst *engine.Instance, source string) error {
	_, err := h.Runtime.RunSource(inst.GetFullName(), source, inst)
	return err
}

func (h *Host) moduleSource(m *engine.Instance) (string, error) {
	if !m.IsA("ModuleScript") {
		return "", fmt.Errorf("require expects a ModuleScript, got %s", m.ClassName())
	}
	src, _, err := h.Classes.Get(m, "Source")
	if err != nil {
		return "", err
	}
	enabled, _, err := h.Classes.Get(m, "Enabled")
	if err != nil {
		return "", err
	}
	if enabled != true {
		return "", fmt.Errorf("Cannot require disabled ModuleScript '%s'", m.Name())
	}
	return src.(string), nil
}

// RunSource starts source as a script named name.
func (h *Host) RunSource(name, source string) error {
	s, err := h.Classes.Construct(h.World, "Script")
	if err != nil {
		return err
	}
	s.SetName(name)
	if err := h.Classes.Set(s, "Source", source); err != nil {
		return err
	}
	_, err = classes.Execute(h.env, s)
	return err
}

// RunFile starts the script at path.
func (h *Host) RunFile(path string) error {
	s, err := h.Classes.Construct(h.World, "Script")
	if err != nil {
		return err
	}
	s.SetName(filepath.Base(path))
	if err := classes.LoadFromPath(h.env, s, path); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	_, err = classes.Execute(h.env, s)
	return err
}

// LoadPlace rebuilds a saved place under the DataModel.
func (h *Host) LoadPlace(path string) error {
	l := &place.Loader{Classes: h.Classes, Enums: h.Enums}
	return l.LoadFile(path, h.DataModel)
}

func (h *Host) SavePlace(path string) error {
	return place.SaveFile(path, h.Classes, h.DataModel)
}

// StartScripts executes every Script in the place, in tree order.
func (h *Host) StartScripts() int {
	started := 0
	for _, inst := range h.DataModel.GetDescendants() {
		if inst.ClassName() != "Script" {
			continue
		}
		ok, err := classes.Execute(h.env, inst)
		if err != nil {
			h.Logger.Error("script failed to start", "script", inst.GetFullName(), "err", err)
			continue
		}
		if ok {
			started++
		}
	}
	return started
}

// Step advances the scheduler by one frame and drops handles of destroyed
// instances.
func (h *Host) Step() {
	h.Runtime.Sched.Step()
	h.Runtime.Sweep()
}

// RunToIdle steps until no task is left.
func (h *Host) RunToIdle(ctx context.Context) error {
	err := h.Runtime.Sched.RunToIdle(ctx)
	h.Runtime.Sweep()
	return err
}

// Dump writes the place as JSON.
func (h *Host) Dump(w io.Writer) error {
	doc, err := place.Save(h.Classes, h.DataModel)
	if err != nil {
		return err
	}
	return place.Write(w, doc)
}
