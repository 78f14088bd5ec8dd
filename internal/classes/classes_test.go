package classes

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

type recordingExecutor struct {
	ran []string
	err error
}

func (e *recordingExecutor) Execute(_ *engine.Instance, source string) error {
	e.ran = append(e.ran, source)
	return e.err
}

type fixture struct {
	env *Env
	cs  *reflection.Classes
	w   *engine.World
	dm  *engine.Instance
	exe *recordingExecutor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	exe := &recordingExecutor{}
	env := &Env{
		Executor: exe,
		ReadFile: func(path string) ([]byte, error) {
			if path == "hello.lua" {
				return []byte("print('hello')"), nil
			}
			return nil, errors.New("no such file")
		},
	}
	r := reflection.NewRegistry()
	Register(r, env)
	cs, err := r.Bind()
	require.NoError(t, err)
	env.Classes = cs
	w := engine.NewWorld(engine.WithHierarchy(cs))
	dm, err := NewDataModel(w)
	require.NoError(t, err)
	return &fixture{env: env, cs: cs, w: w, dm: dm, exe: exe}
}

func (f *fixture) get(t *testing.T, inst *engine.Instance, name string) any {
	t.Helper()
	v, found, err := f.cs.Get(inst, name)
	require.NoError(t, err)
	require.True(t, found, "member %s", name)
	return v
}

func (f *fixture) call(t *testing.T, inst *engine.Instance, name string, args ...any) []any {
	t.Helper()
	out, err := f.cs.Call(inst, name, args...)
	require.NoError(t, err)
	return out
}

func TestCatalogueLineage(t *testing.T) {
	f := setup(t)
	assert.Equal(t, []string{"Part", "BasePart", "Instance", "Object"}, f.cs.Lineage("Part"))
	assert.Equal(t, []string{"DataModel", "ServiceProvider", "Instance", "Object"}, f.cs.Lineage("DataModel"))
	assert.Equal(t, []string{"ModuleScript", "LuaSourceContainer", "Instance", "Object"}, f.cs.Lineage("ModuleScript"))
}

func TestConstructibility(t *testing.T) {
	f := setup(t)
	for _, name := range []string{"Folder", "Part", "Script", "ModuleScript"} {
		inst, err := f.cs.Construct(f.w, name)
		require.NoError(t, err, name)
		assert.Equal(t, name, inst.ClassName())
		assert.Equal(t, name, inst.Name())
	}
	for _, name := range []string{"Object", "Instance", "BasePart", "LuaSourceContainer", "DataModel", "ServiceProvider", "Workspace", "Lighting"} {
		_, err := f.cs.Construct(f.w, name)
		assert.ErrorIs(t, err, reflection.ErrAbstract, name)
	}
	_, err := f.cs.Construct(f.w, "Spaceship")
	assert.ErrorIs(t, err, reflection.ErrUnknownClass)
}

func TestDataModelServices(t *testing.T) {
	f := setup(t)
	assert.Equal(t, "Game", f.dm.Name())

	ws := f.call(t, f.dm, "GetService", "Workspace")[0].(*engine.Instance)
	assert.Equal(t, "Workspace", ws.ClassName())
	assert.Same(t, f.dm, ws.Parent())
	assert.Same(t, ws, f.call(t, f.dm, "GetService", "Workspace")[0])
	assert.Same(t, ws, f.call(t, f.dm, "FindService", "Workspace")[0])
	assert.Equal(t, 2, f.dm.NumChildren())

	_, err := f.cs.Call(f.dm, "GetService", "Nope")
	assert.ErrorContains(t, err, "'Nope' is not a valid Service name")

	assert.Nil(t, f.call(t, f.dm, "FindService", "Nope")[0])
}

func TestWorkspaceDefaults(t *testing.T) {
	f := setup(t)
	ws := FindService(f.dm, "Workspace")
	assert.Equal(t, datatypes.NewVector3(0, -196.2, 0), f.get(t, ws, "Gravity"))
	assert.Nil(t, f.get(t, ws, "CurrentCamera"))
	assert.ErrorIs(t, f.cs.Set(ws, "CurrentCamera", nil), reflection.ErrReadOnly)

	require.NoError(t, f.cs.Set(ws, "Gravity", datatypes.NewVector3(0, -10, 0)))
	assert.Equal(t, datatypes.NewVector3(0, -10, 0), f.get(t, ws, "Gravity"))
	assert.Error(t, f.cs.Set(ws, "Gravity", 3.0))
}

func TestLighting(t *testing.T) {
	f := setup(t)
	l := FindService(f.dm, "Lighting")
	assert.Equal(t, 1.0, f.get(t, l, "Brightness"))
	assert.Equal(t, 0.0, f.get(t, l, "ClockTime"))
	assert.Equal(t, datatypes.Color3{}, f.get(t, l, "Ambient"))

	require.NoError(t, f.cs.Set(l, "ClockTime", 30.0))
	assert.Equal(t, 6.0, f.get(t, l, "ClockTime"))

	require.NoError(t, f.cs.Set(l, "ClockTime", 6.0))
	dir := f.call(t, l, "GetSunDirection")[0].(datatypes.Vector3)
	assert.InDelta(t, 1.0, float64(dir.Magnitude()), 1e-5)
	assert.InDelta(t, math.Sin(1), float64(dir.Y), 1e-5)
}

func TestPartDefaults(t *testing.T) {
	f := setup(t)
	p, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)

	assert.Equal(t, datatypes.NewVector3(0, 0.5, 0), f.get(t, p, "Position"))
	assert.Equal(t, datatypes.NewVector3(4, 1, 2), f.get(t, p, "Size"))
	assert.Equal(t, datatypes.FromRGB(163, 162, 165), f.get(t, p, "Color"))
	assert.Equal(t, true, f.get(t, p, "Anchored"))
	assert.Equal(t, true, f.get(t, p, "CanCollide"))
	assert.Equal(t, 0.0, f.get(t, p, "Transparency"))
	assert.Equal(t, "Block", f.get(t, p, "Shape"))
	assert.Equal(t, 8.0, f.get(t, p, "Mass"))
	assert.Equal(t, []any{8.0}, f.call(t, p, "GetMass"))
	assert.ErrorIs(t, f.cs.Set(p, "Mass", 1.0), reflection.ErrReadOnly)

	require.NoError(t, f.cs.Set(p, "Size", datatypes.NewVector3(1, 2, 3)))
	assert.Equal(t, 6.0, f.get(t, p, "Mass"))

	require.NoError(t, f.cs.Set(p, "Anchored", nil))
	assert.Equal(t, false, f.get(t, p, "Anchored"))
}

func TestPartShape(t *testing.T) {
	f := setup(t)
	p, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	pt, _ := f.env.Enums.Get("PartType")

	ball, _ := pt.Item("Ball")
	require.NoError(t, f.cs.Set(p, "Shape", ball))
	assert.Equal(t, "Sphere", f.get(t, p, "Shape"))

	require.NoError(t, f.cs.Set(p, "Shape", 2.0))
	assert.Equal(t, "Cylinder", f.get(t, p, "Shape"))

	require.NoError(t, f.cs.Set(p, "Shape", "Wedge"))
	assert.Equal(t, "Wedge", f.get(t, p, "Shape"))

	err = f.cs.Set(p, "Shape", "Hexagon")
	assert.ErrorContains(t, err, "attempt to set invalid Part.Shape value of 'Hexagon'")
	assert.Error(t, f.cs.Set(p, "Shape", 42.0))
	assert.Equal(t, "Wedge", f.get(t, p, "Shape"))
}

func TestPartSignalsDisconnectOnDestroy(t *testing.T) {
	f := setup(t)
	p, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	touched := f.get(t, p, "Touched").(*engine.Signal)
	touched.Connect(func(any) {})
	require.Equal(t, 1, touched.ListenerCount())

	p.Destroying.DisconnectAll()
	p.Destroy()
	assert.Equal(t, 0, touched.ListenerCount())
}

func TestPropertyWriteFiresChanged(t *testing.T) {
	f := setup(t)
	p, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	var changed []any
	p.Changed.Connect(func(arg any) { changed = append(changed, arg) })

	require.NoError(t, f.cs.Set(p, "Name", "Brick"))
	require.NoError(t, f.cs.Set(p, "Transparency", 0.5))
	require.NoError(t, f.cs.Set(p, "Parent", FindService(f.dm, "Workspace")))
	assert.Equal(t, []any{"Name", "Transparency", "Parent"}, changed)
	assert.Equal(t, "Brick", p.Name())
}

func TestInstanceMembers(t *testing.T) {
	f := setup(t)
	ws := FindService(f.dm, "Workspace")
	folder, err := f.cs.Construct(f.w, "Folder")
	require.NoError(t, err)
	part, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	require.NoError(t, f.cs.Set(folder, "Parent", ws))
	require.NoError(t, f.cs.Set(part, "Parent", folder))

	assert.Equal(t, "Workspace.Folder.Part", f.call(t, part, "GetFullName")[0])
	assert.Same(t, part, f.call(t, ws, "FindFirstChild", "Part", true)[0])
	assert.Nil(t, f.call(t, ws, "FindFirstChild", "Part")[0])
	assert.Same(t, part, f.call(t, folder, "FindFirstChildWhichIsA", "BasePart")[0])
	assert.Same(t, folder, f.call(t, part, "FindFirstAncestorOfClass", "Folder")[0])
	assert.Equal(t, true, f.call(t, ws, "IsAncestorOf", part)[0])
	assert.Equal(t, true, f.call(t, part, "IsDescendantOf", f.dm)[0])
	assert.Equal(t, true, f.call(t, part, "IsA", "Instance")[0])
	assert.Equal(t, false, f.call(t, part, "IsA", "Folder")[0])
	assert.Len(t, f.call(t, ws, "GetDescendants")[0], 2)

	f.call(t, part, "SetAttribute", "Health", 100)
	assert.Equal(t, 100.0, f.call(t, part, "GetAttribute", "Health")[0])
	assert.Equal(t, map[string]any{"Health": 100.0}, f.call(t, part, "GetAttributes")[0])

	f.call(t, part, "AddTag", "Lava")
	assert.Equal(t, true, f.call(t, part, "HasTag", "Lava")[0])
	assert.Equal(t, []string{"Lava"}, f.call(t, part, "GetTags")[0])

	_, err = f.cs.Call(part, "FindFirstChild", 12.0)
	var argErr *reflection.ArgError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, 1, argErr.Index)

	f.call(t, ws, "ClearAllChildren")
	assert.True(t, part.Destroyed())
	assert.Equal(t, 0, ws.NumChildren())
}

func TestParentRejectsNonInstance(t *testing.T) {
	f := setup(t)
	p, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	assert.Error(t, f.cs.Set(p, "Parent", "Workspace"))
	assert.ErrorIs(t, f.cs.Set(p, "Parent", p), engine.ErrCyclicParent)
}

func TestClone(t *testing.T) {
	f := setup(t)
	model, err := f.cs.Construct(f.w, "Folder")
	require.NoError(t, err)
	model.SetName("Model")
	part, err := f.cs.Construct(f.w, "Part")
	require.NoError(t, err)
	require.NoError(t, f.cs.Set(part, "Size", datatypes.NewVector3(2, 2, 2)))
	require.NoError(t, part.SetAttribute("Owner", "me"))
	part.AddTag("Lava")
	require.NoError(t, part.SetParent(model))
	hidden, err := f.cs.Construct(f.w, "Folder")
	require.NoError(t, err)
	hidden.SetArchivable(false)
	require.NoError(t, hidden.SetParent(model))

	out := f.call(t, model, "Clone")[0].(*engine.Instance)
	require.NotNil(t, out)
	assert.NotSame(t, model, out)
	assert.Nil(t, out.Parent())
	assert.Equal(t, "Model", out.Name())
	require.Equal(t, 1, out.NumChildren())

	pc := out.GetChildren()[0]
	assert.NotSame(t, part, pc)
	assert.Equal(t, datatypes.NewVector3(2, 2, 2), f.get(t, pc, "Size"))
	v, _ := pc.GetAttribute("Owner")
	assert.Equal(t, "me", v)
	assert.True(t, pc.HasTag("Lava"))

	none, err := Clone(f.cs, hidden)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = Clone(f.cs, FindService(f.dm, "Workspace"))
	assert.Error(t, err)
}

func TestScriptExecute(t *testing.T) {
	f := setup(t)
	s, err := f.cs.Construct(f.w, "Script")
	require.NoError(t, err)
	assert.Equal(t, true, f.get(t, s, "Enabled"))

	// empty source
	assert.Equal(t, []any{false}, f.call(t, s, "Execute"))

	require.NoError(t, f.cs.Set(s, "Source", "x = 1"))
	assert.Equal(t, []any{true}, f.call(t, s, "Execute"))
	assert.Equal(t, []string{"x = 1"}, f.exe.ran)

	require.NoError(t, f.cs.Set(s, "Enabled", false))
	assert.Equal(t, []any{false}, f.call(t, s, "Execute"))
	assert.Len(t, f.exe.ran, 1)

	f.exe.err = errors.New("boom")
	require.NoError(t, f.cs.Set(s, "Enabled", true))
	_, err = f.cs.Call(s, "Execute")
	assert.ErrorContains(t, err, "boom")
}

func TestScriptLoadFromPath(t *testing.T) {
	f := setup(t)
	s, err := f.cs.Construct(f.w, "Script")
	require.NoError(t, err)

	assert.Equal(t, []any{true}, f.call(t, s, "LoadFromPath", "hello.lua"))
	assert.Equal(t, "print('hello')", f.get(t, s, "Source"))
	assert.Equal(t, "hello.lua", f.get(t, s, "SourcePath"))
	assert.Equal(t, []any{false, "no such file"}, f.call(t, s, "LoadFromPath", "missing.lua"))
	assert.Equal(t, "print('hello')", f.get(t, s, "Source"), "a failed load keeps the old source")

	// Execute loads from SourcePath when Source is empty.
	lazy, err := f.cs.Construct(f.w, "Script")
	require.NoError(t, err)
	require.NoError(t, f.cs.Set(lazy, "SourcePath", "hello.lua"))
	assert.Equal(t, []any{true}, f.call(t, lazy, "Execute"))
	assert.Equal(t, []string{"print('hello')"}, f.exe.ran)
}

func TestModuleScript(t *testing.T) {
	f := setup(t)
	m, err := f.cs.Construct(f.w, "ModuleScript")
	require.NoError(t, err)
	assert.Equal(t, "", f.get(t, m, "LinkedSource"))
	assert.ErrorIs(t, f.cs.Set(m, "LinkedSource", "x"), reflection.ErrReadOnly)

	assert.Equal(t, []any{true}, f.call(t, m, "LoadFromPath", "hello.lua"))
	assert.Equal(t, "hello.lua", f.get(t, m, "LinkedSource"))
	require.NoError(t, f.cs.Set(m, "Source", "return 1"))
	assert.Equal(t, "", f.get(t, m, "LinkedSource"), "editing the source unlinks it")
	assert.Equal(t, "hello.lua", f.get(t, m, "SourcePath"))
	assert.True(t, m.IsA("LuaSourceContainer"))
}
