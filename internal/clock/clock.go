package clock

import (
	"sync"
	"time"
)

// Clock is the time source for everything that decides "today".
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in a fixed location.
type Real struct {
	loc *time.Location
}

func NewReal(loc *time.Location) Real {
	if loc == nil {
		loc = time.Local
	}
	return Real{loc: loc}
}

func (c Real) Now() time.Time {
	return time.Now().In(c.loc)
}

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
