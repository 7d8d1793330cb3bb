package services

import (
	"context"
	"time"
)

var cst = time.FixedZone("CST", 8*3600)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	now time.Time
}

func newFakeClock(year int, month time.Month, day, hour, min int) *fakeClock {
	return &fakeClock{now: time.Date(year, month, day, hour, min, 0, 0, cst)}
}

func (f *fakeClock) Clock() Clock {
	return Clock{Loc: cst, Now: func() time.Time { return f.now }}
}

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

var bg = context.Background()
