package script

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"blockengine/internal/classes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
	"blockengine/internal/scheduler"
)

type harness struct {
	rt     *Runtime
	dm     *engine.Instance
	clock  *scheduler.VirtualClock
	out    *bytes.Buffer
	failed []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: scheduler.NewVirtualClock(), out: &bytes.Buffer{}}
	env := &classes.Env{}
	reg := reflection.NewRegistry()
	classes.Register(reg, env)
	cs, err := reg.Bind()
	require.NoError(t, err)
	env.Classes = cs

	w := engine.NewWorld(engine.WithHierarchy(cs))
	h.rt = New(w, cs, Options{
		Output: h.out,
		Enums:  env.Enums,
		ModuleSource: func(m *engine.Instance) (string, error) {
			if !m.IsA("ModuleScript") {
				return "", errors.New("require expects a ModuleScript")
			}
			v, _, err := cs.Get(m, "Source")
			if err != nil {
				return "", err
			}
			return v.(string), nil
		},
		SchedulerOptions: []scheduler.Option{
			scheduler.WithClock(h.clock),
			scheduler.WithErrorHandler(func(_ *scheduler.Task, err error) {
				h.failed = append(h.failed, err)
			}),
		},
	})
	t.Cleanup(h.rt.Close)

	h.dm, err = classes.NewDataModel(w)
	require.NoError(t, err)
	h.rt.L.SetGlobal("game", h.rt.Handle(h.rt.L, h.dm))
	h.rt.L.SetGlobal("workspace", h.rt.Handle(h.rt.L, classes.FindService(h.dm, "Workspace")))
	return h
}

// run schedules source and gives it one step.
func (h *harness) run(t *testing.T, source string) {
	t.Helper()
	_, err := h.rt.RunSource(t.Name(), source, nil)
	require.NoError(t, err)
	h.rt.Sched.Step()
}

func (h *harness) lines() []string {
	s := strings.TrimRight(h.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestPropertyAndMethodResolution(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local p = Instance.new("Part")
		print(p.ClassName, p.Name, p:IsA("Instance"), p.IsA(p, "BasePart"), p.Size)
		print(p.Nope)
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"Part\tPart\ttrue\ttrue\t4, 1, 2", "nil"}, h.lines())
}

func TestPropertyWrites(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local p = Instance.new("Part", workspace)
		p.Name = "Brick"
		p.Size = Vector3.new(1, 2, 3)
		print(workspace.Brick, p.Mass, p:GetFullName())
	`)
	// Children are not members; only FindFirstChild reaches them.
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"nil\t6\tWorkspace.Brick"}, h.lines())

	h.run(t, `local p = Instance.new("Part"); p.ClassName = "Folder"`)
	require.Len(t, h.failed, 1)
	assert.ErrorContains(t, h.failed[0], "property is read-only")

	h.run(t, `local p = Instance.new("Part"); p.Size = 5`)
	require.Len(t, h.failed, 2)
	assert.ErrorContains(t, h.failed[1], "Vector3 expected, got number")
}

func TestHandleIdentity(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local p = Instance.new("Part")
		p.Name = "Brick"
		p.Parent = workspace
		local seen = {}
		seen[p] = true
		local again = workspace:FindFirstChild("Brick")
		print(p == again, seen[again], rawequal(p, again), p == Instance.new("Part"))
		print(workspace:GetChildren()[1] == p, p.Parent == workspace, tostring(p))
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"true\ttrue\ttrue\tfalse", "true\ttrue\tPart: Brick"}, h.lines())
}

func TestDestroyedHandle(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local f = Instance.new("Folder")
		local same = f
		f:Destroy()
		print(tostring(f), f == same)
		local ok, err = pcall(function() return f.Archivable end)
		print(ok, string.find(err, "attempt to use destroyed Folder", 1, true) ~= nil)
		ok, err = pcall(function() f.Name = "x" end)
		print(ok)
		ok, err = pcall(function() Instance.new("Part").Parent = f end)
		print(ok)
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"Folder: Folder\ttrue", "false\ttrue", "false", "false"}, h.lines())
}

func TestDestroyedInstanceStaysReadable(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local root = Instance.new("Folder", workspace)
		root.Name = "Root"
		local child = Instance.new("Part", root)
		Instance.new("Folder", child)
		root:Destroy()
		print(root.Parent == nil, #root:GetDescendants(), #root:GetChildren(), child.Parent == nil)
		print(root.Name, root.ClassName, root:IsA("Instance"), root:GetFullName())
		print(pcall(function() return root:FindFirstChild("Part") end))
		print(pcall(function() root:ClearAllChildren() end))
	`)
	require.Empty(t, h.failed)
	lines := h.lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "true\t0\t0\ttrue", lines[0])
	assert.Equal(t, "Root\tFolder\ttrue\tRoot", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "false\t"))
	assert.Contains(t, lines[2], "attempt to use destroyed Folder")
	assert.True(t, strings.HasPrefix(lines[3], "false\t"))
}

func TestWaitInsideProtectedCall(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		print(pcall(function()
			local dt = task.wait(1)
			print("resumed", dt)
			return "r"
		end))
		print("after")
	`)
	require.Empty(t, h.failed)
	assert.Empty(t, h.lines())
	assert.Equal(t, 1, h.rt.Sched.Live())

	h.clock.Advance(1)
	h.rt.Sched.Step()
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"resumed\t1", "true\tr", "after"}, h.lines())
	assert.Equal(t, 0, h.rt.Sched.Live())
}

func TestRequireRejectsWaitingModule(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local m = Instance.new("ModuleScript", workspace)
		m.Source = "print('mod start') task.wait(1) print('mod end') return 5"
		local ok, err = pcall(require, m)
		print(ok, err:find("task.wait across a native call", 1, true) ~= nil)
		ok = pcall(require, m)
		print(ok)
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"mod start", "false\ttrue", "mod start", "false"}, h.lines())
	assert.Equal(t, 0, h.rt.Sched.Live())
}

func TestInstanceNewErrors(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		for _, name in ipairs({"BasePart", "Spaceship", "Workspace"}) do
			local ok, err = pcall(Instance.new, name)
			print(ok, string.find(err, "Cannot create instance of '" .. name .. "'", 1, true) ~= nil)
		end
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"false\ttrue", "false\ttrue", "false\ttrue"}, h.lines())
}

func TestBadArgumentMessage(t *testing.T) {
	h := newHarness(t)
	h.run(t, `workspace:FindFirstChild(42)`)
	require.Len(t, h.failed, 1)
	assert.ErrorContains(t, h.failed[0], "bad argument #1 to 'FindFirstChild' (string expected, got number)")
}

func TestSignalHandlersMayWait(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local box = Instance.new("Folder", workspace)
		box.ChildAdded:Connect(function(child)
			print("added", child.Name)
			local dt = task.wait(1)
			print("later", child.Name, dt)
		end)
		local kid = Instance.new("Folder")
		kid.Name = "Kid"
		kid.Parent = box
		print("after")
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"added\tKid", "after"}, h.lines())

	h.clock.Advance(1)
	h.rt.Sched.Step()
	assert.Equal(t, []string{"added\tKid", "after", "later\tKid\t1"}, h.lines())
}

func TestSignalOnceAndDisconnect(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local f = Instance.new("Folder")
		local n, m = 0, 0
		f.Changed:Once(function() n = n + 1 end)
		local c = f.Changed:Connect(function(prop) m = m + 1 end)
		f.Name = "a"
		f.Name = "b"
		print(n, m, c.Connected)
		c:Disconnect()
		f.Name = "c"
		print(m, c.Connected, tostring(f.Changed))
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"1\t2\ttrue", "2\tfalse\tSignal Changed"}, h.lines())
}

func TestHandlerErrorsDoNotReachFiringCode(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local f = Instance.new("Folder")
		f.Changed:Connect(function() error("handler broke") end)
		f.Name = "x"
		print("still running")
	`)
	assert.Equal(t, []string{"still running"}, h.lines())
	require.Len(t, h.failed, 1)
	assert.ErrorContains(t, h.failed[0], "handler broke")
}

func TestScriptsHaveIsolatedGlobals(t *testing.T) {
	h := newHarness(t)
	_, err := h.rt.RunSource("a", `shared = 1; print(shared)`, nil)
	require.NoError(t, err)
	_, err = h.rt.RunSource("b", `print(shared, Instance ~= nil, task ~= nil)`, nil)
	require.NoError(t, err)
	h.rt.Sched.Step()
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"1", "nil\ttrue\ttrue"}, h.lines())
	assert.Equal(t, lua.LNil, h.rt.L.GetGlobal("shared"))
}

func TestScriptGlobal(t *testing.T) {
	h := newHarness(t)
	s, err := h.rt.Classes.Construct(h.rt.World, "Script")
	require.NoError(t, err)
	s.SetName("Main")
	_, err = h.rt.RunSource("main", `print(script.Name, script.ClassName)`, s)
	require.NoError(t, err)
	h.rt.Sched.Step()
	assert.Equal(t, []string{"Main\tScript"}, h.lines())
}

func TestCompileError(t *testing.T) {
	h := newHarness(t)
	_, err := h.rt.RunSource("broken", `local = 1`, nil)
	assert.ErrorContains(t, err, "compile broken")
}

func TestDatatypes(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local v = Vector3.new(1, 2, 3) + Vector3.one
		print(v, v.X, Vector3.new(3, 4, 0).Magnitude, v * 2, -v)
		print(Vector3.new(1, 0, 0):Cross(Vector3.new(0, 1, 0)), Vector3.new(1, 2, 3) == Vector3.new(1, 2, 3))
		local c = Color3.fromRGB(255, 0, 0)
		print(c.R, c.G, typeof(c), typeof(v), typeof(1), typeof(workspace))
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{
		"2, 3, 4\t2\t5\t4, 6, 8\t-2, -3, -4",
		"0, 0, 1\ttrue",
		"1\t0\tColor3\tVector3\tnumber\tInstance",
	}, h.lines())
}

func TestEnums(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local p = Instance.new("Part")
		p.Shape = Enum.PartType.Ball
		print(p.Shape, Enum.PartType.Ball, Enum.PartType.Cylinder.Value, Enum.PartType.Ball == Enum.PartType.Ball)
		p.Shape = 3
		print(p.Shape, #Enum.PartType:GetEnumItems())
		local ok = pcall(function() p.Shape = "Hexagon" end)
		print(ok, p.Shape)
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{
		"Sphere\tEnum.PartType.Ball\t2\ttrue",
		"Wedge\t5",
		"false\tWedge",
	}, h.lines())
}

func TestRequireCachesModuleValue(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local m = Instance.new("ModuleScript", workspace)
		m.Source = "loads = (loads or 0) + 1; return { name = script.Name, n = loads }"
		local a = require(m)
		local b = require(m)
		print(a == b, a.name, a.n)
		local ok, err = pcall(require, workspace)
		print(ok, err:find("require expects a ModuleScript", 1, true) ~= nil)
		ok, err = pcall(require, 5)
		print(ok, err:find("got number", 1, true) ~= nil)
	`)
	require.Empty(t, h.failed)
	assert.Equal(t, []string{"true\tModuleScript\t1", "false\ttrue", "false\ttrue"}, h.lines())
}

func TestRunChunk(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		print(__RUN_CHUNK("print('inner')"))
		local ok, err = __RUN_CHUNK("error('nope')", "bad")
		print(ok, err:find("nope", 1, true) ~= nil)
		print(__RUN_CHUNK("local = "))
	`)
	lines := h.lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "inner", lines[0])
	assert.Equal(t, "true", lines[1])
	assert.Equal(t, "false\ttrue", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "false\t"))
}

func TestSweepForgetsDestroyedHandles(t *testing.T) {
	h := newHarness(t)
	h.run(t, `
		local f = Instance.new("Folder")
		kept = Instance.new("Folder", workspace)
		f:Destroy()
	`)
	before := len(h.rt.handles)
	h.rt.Sweep()
	assert.Equal(t, before-1, len(h.rt.handles))
}
