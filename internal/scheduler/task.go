package scheduler

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// Task is one script coroutine under the scheduler's control.
type Task struct {
	ID    uint64
	Label string

	// WakeTime is the clock time at or after which the task is resumed.
	WakeTime float64
	// SleepStartTime is when the task last suspended. The elapsed time
	// handed back on resume is measured from it.
	SleepStartTime float64
	Finished       bool
	// Err is the script error the task ended with, if any.
	Err error

	thread  *lua.LState
	cancel  context.CancelFunc
	fn      *lua.LFunction
	args    []lua.LValue
	started bool
}

// Thread returns the coroutine the task runs on.
func (t *Task) Thread() *lua.LState {
	return t.thread
}

func (t *Task) finish() {
	t.Finished = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
