package fragment

import "time"

// Clock is the stage's monotonic tick source.
type Clock interface {
	Now() uint64
	TicksPerSecond() uint64
}

// sysClock counts nanoseconds since construction, which keeps tick zero
// small and the arithmetic overflow-free for any realistic uptime.
type sysClock struct {
	t0 time.Time
}

func NewSystemClock() Clock { return &sysClock{t0: time.Now()} }

func (c *sysClock) Now() uint64            { return uint64(time.Since(c.t0)) }
func (c *sysClock) TicksPerSecond() uint64 { return uint64(time.Second) }
