package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *VirtualClock) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	clock := NewVirtualClock()
	s := New(L, append([]Option{WithClock(clock)}, opts...)...)
	s.Open()
	return s, clock
}

func global(s *Scheduler, name string) lua.LValue {
	return s.L.GetGlobal(name)
}

func TestSpawnDoesNotRunSynchronously(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		ran = false
		task.spawn(function(a, b) ran = a + b end, 2, 3)
	`))

	assert.Equal(t, lua.LFalse, global(s, "ran"))
	assert.Equal(t, 1, s.Live())

	s.Step()
	assert.Equal(t, lua.LNumber(5), global(s, "ran"))
	assert.Equal(t, 0, s.Live())
}

func TestWaitTiming(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		resumedAt = nil
		elapsed = nil
		task.spawn(function()
			elapsed = task.wait(1.0)
			resumedAt = now()
		end)
	`))
	s.L.SetGlobal("now", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(clock.Now()))
		return 1
	}))

	// t=0: the task starts and suspends until t=1.
	s.Step()
	assert.Equal(t, lua.LNil, global(s, "resumedAt"))

	clock.Advance(0.5)
	s.Step()
	assert.Equal(t, lua.LNil, global(s, "resumedAt"), "not due at t=0.5")

	clock.Advance(0.5)
	s.Step()
	assert.Equal(t, lua.LNumber(1), global(s, "resumedAt"))
	assert.InDelta(t, 1.0, float64(global(s, "elapsed").(lua.LNumber)), 1e-9)
	assert.Equal(t, 0, s.Live())
}

func TestWaitResumesAtMostOncePerStep(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		count = 0
		task.spawn(function()
			while true do
				count = count + 1
				task.wait(0)
			end
		end)
	`))

	for range 3 {
		s.Step()
		clock.Advance(0.1)
	}
	assert.Equal(t, lua.LNumber(3), global(s, "count"))
}

func TestTasksResumeInInsertionOrder(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		order = {}
		for i = 1, 4 do
			task.spawn(function() table.insert(order, i) end)
		end
	`))
	s.Step()

	order := global(s, "order").(*lua.LTable)
	var got []int
	order.ForEach(func(_, v lua.LValue) { got = append(got, int(v.(lua.LNumber))) })
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestSpawnDuringStepRunsNextStep(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		inner = false
		task.spawn(function()
			task.spawn(function() inner = true end)
		end)
	`))

	s.Step()
	assert.Equal(t, lua.LFalse, global(s, "inner"))
	assert.Equal(t, 1, s.Live())

	s.Step()
	assert.Equal(t, lua.LTrue, global(s, "inner"))
}

func TestWaitOutsideTask(t *testing.T) {
	s, _ := newTestScheduler(t)
	err := s.L.DoString(`task.wait(1)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNotInTask.Error())
}

func TestWaitInsideProtectedCalls(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		log = {}
		task.spawn(function()
			local ok, v = pcall(function(a)
				local dt = task.wait(1)
				local inner, w = xpcall(function()
					task.wait(2)
					return "deep"
				end, function(err) return "handled" end)
				table.insert(log, tostring(inner) .. ":" .. w)
				return a + dt
			end, 40)
			table.insert(log, tostring(ok) .. ":" .. v)
		end)
	`))

	s.Step()
	assert.Equal(t, 0, global(s, "log").(*lua.LTable).Len())
	assert.Equal(t, 1, s.Live())

	clock.Advance(1)
	s.Step()
	assert.Equal(t, 0, global(s, "log").(*lua.LTable).Len(), "the nested wait is still pending")

	clock.Advance(2)
	s.Step()
	var got []string
	global(s, "log").(*lua.LTable).ForEach(func(_, v lua.LValue) { got = append(got, v.String()) })
	assert.Equal(t, []string{"true:deep", "true:41"}, got)
	assert.Equal(t, 0, s.Live())
}

func TestProtectedCallErrors(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		ok1, err1 = pcall(function() error("plain", 0) end)
		ok2, err2 = pcall(nil)
		ok3, err3 = xpcall(function() error({code = 7}) end, function(e) return e.code end)
		ok4, a, b = pcall(function(x, y) return y, x end, 1, 2)
	`))

	assert.Equal(t, lua.LFalse, global(s, "ok1"))
	assert.Equal(t, lua.LString("plain"), global(s, "err1"))
	assert.Equal(t, lua.LFalse, global(s, "ok2"))
	assert.Contains(t, global(s, "err2").String(), "attempt to call")
	assert.Equal(t, lua.LFalse, global(s, "ok3"))
	assert.Equal(t, lua.LNumber(7), global(s, "err3"))
	assert.Equal(t, lua.LTrue, global(s, "ok4"))
	assert.Equal(t, lua.LNumber(2), global(s, "a"))
	assert.Equal(t, lua.LNumber(1), global(s, "b"))
}

func TestWaitUnderNativeCallRaises(t *testing.T) {
	var failed []error
	s, _ := newTestScheduler(t, WithErrorHandler(func(_ *Task, err error) {
		failed = append(failed, err)
	}))
	require.NoError(t, s.L.DoString(`
		after = false
		task.spawn(function()
			table.sort({3, 1, 2}, function(a, b)
				task.wait(1)
				return a < b
			end)
			after = true
		end)
	`))

	s.Step()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error(), ErrNotYieldable.Error())
	assert.Equal(t, lua.LFalse, global(s, "after"))
	assert.Equal(t, 0, s.Live())
}

func TestCallRunsDetached(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		function sum(a, b) return a + b end
		function sleepy() task.wait(1) return 1 end
	`))

	rets, err := s.Call(s.L, global(s, "sum").(*lua.LFunction), lua.LNumber(2), lua.LNumber(3))
	require.NoError(t, err)
	assert.Equal(t, []lua.LValue{lua.LNumber(5)}, rets)

	_, err = s.Call(s.L, global(s, "sleepy").(*lua.LFunction))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNotYieldable.Error())
	assert.Equal(t, 0, s.Live())
}

func TestFailingTaskIsIsolated(t *testing.T) {
	var failed []*Task
	s, _ := newTestScheduler(t, WithErrorHandler(func(task *Task, err error) {
		failed = append(failed, task)
	}))
	require.NoError(t, s.L.DoString(`
		survivor = false
		task.spawn(function() error("boom") end)
		task.spawn(function() survivor = true end)
	`))

	s.Step()

	assert.Equal(t, lua.LTrue, global(s, "survivor"))
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Finished)
	assert.Equal(t, 0, s.Live())
}

func TestDelay(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		got = nil
		task.delay(2, function(v) got = v end, "late")
	`))

	s.Step()
	assert.Equal(t, lua.LNil, global(s, "got"))

	clock.Advance(2)
	s.Step()
	assert.Equal(t, lua.LString("late"), global(s, "got"))
}

func TestRunStartsImmediately(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		stage = 0
		handler = function(v)
			stage = v
			task.wait(1)
			stage = v + 1
		end
	`))
	fn := global(s, "handler").(*lua.LFunction)

	task := s.Run(fn, "handler", lua.LNumber(10))
	assert.Equal(t, lua.LNumber(10), global(s, "stage"))
	assert.False(t, task.Finished)

	clock.Advance(1)
	s.Step()
	assert.Equal(t, lua.LNumber(11), global(s, "stage"))
	assert.True(t, task.Finished)
}

func TestRunFromInsideTask(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.L.SetGlobal("fire", s.L.NewFunction(func(L *lua.LState) int {
		s.Run(L.CheckFunction(1), "nested")
		return 0
	}))
	require.NoError(t, s.L.DoString(`
		log = {}
		task.spawn(function()
			table.insert(log, "outer-start")
			fire(function() table.insert(log, "nested") end)
			table.insert(log, "outer-after")
			task.wait(0)
			table.insert(log, "outer-resumed")
		end)
	`))

	s.Step()
	s.Step()

	var got []string
	global(s, "log").(*lua.LTable).ForEach(func(_, v lua.LValue) { got = append(got, v.String()) })
	assert.Equal(t, []string{"outer-start", "nested", "outer-after", "outer-resumed"}, got)
}

func TestRunToIdleFinishes(t *testing.T) {
	s, clock := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		done = 0
		for i = 1, 3 do
			task.spawn(function()
				task.wait(i * 10)
				done = done + 1
			end)
		end
	`))

	require.NoError(t, s.RunToIdle(context.Background()))
	assert.Equal(t, lua.LNumber(3), global(s, "done"))
	assert.Equal(t, 30.0, clock.Now(), "the virtual clock jumps to each wake time")
}

func TestRunToIdleStagnates(t *testing.T) {
	s, _ := newTestScheduler(t, WithStagnationLimit(50))
	require.NoError(t, s.L.DoString(`
		task.spawn(function()
			while true do task.wait(1) end
		end)
	`))

	err := s.RunToIdle(context.Background())
	require.ErrorIs(t, err, ErrStagnated)
	assert.Equal(t, 1, s.Live())
}

func TestRunToIdleHonoursContext(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`task.spawn(function() task.wait(1) end)`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.RunToIdle(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCloseDiscardsTasks(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.L.DoString(`
		ran = false
		task.spawn(function() ran = true end)
	`))

	s.Close()
	s.Step()

	assert.Equal(t, lua.LFalse, global(s, "ran"))
	assert.Equal(t, 0, s.Live())
}

func TestNextWake(t *testing.T) {
	s, _ := newTestScheduler(t)
	_, ok := s.NextWake()
	assert.False(t, ok)

	require.NoError(t, s.L.DoString(`
		task.delay(5, function() end)
		task.delay(3, function() end)
	`))
	next, ok := s.NextWake()
	require.True(t, ok)
	assert.Equal(t, 3.0, next)
	assert.Len(t, s.Tasks(), 2)
}

func TestVirtualClock(t *testing.T) {
	c := NewVirtualClock()
	c.Advance(1.5)
	c.Advance(-1)
	assert.Equal(t, 1.5, c.Now())
	c.AdvanceTo(1)
	assert.Equal(t, 1.5, c.Now(), "never moves backwards")
	c.AdvanceTo(4)
	assert.Equal(t, 4.0, c.Now())
	c.Set(0)
	assert.Equal(t, 0.0, c.Now())
}
