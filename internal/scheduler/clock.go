package scheduler

import "time"

// Clock is the scheduler's monotonic time source, in seconds.
type Clock interface {
	Now() float64
}

// WallClock measures real time since it was created.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// VirtualClock only moves when told to. Tests and headless runs use it so
// that task timing is exact and RunToIdle never sleeps.
type VirtualClock struct {
	now float64
}

func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() float64 {
	return c.now
}

func (c *VirtualClock) Set(t float64) {
	c.now = t
}

func (c *VirtualClock) Advance(d float64) {
	if d > 0 {
		c.now += d
	}
}

// AdvanceTo moves the clock forward to t. It never moves backwards.
func (c *VirtualClock) AdvanceTo(t float64) {
	if t > c.now {
		c.now = t
	}
}
