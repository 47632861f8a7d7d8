package core

import (
	"fmt"
	"time"
)

// EditWindow is how long after its timestamp a transaction may be modified.
const EditWindow = 12 * time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Remaining is the time left in an edit window, in whole hours and minutes.
type Remaining struct {
	Hours   int
	Minutes int
}

func (r Remaining) String() string {
	return fmt.Sprintf("%dh %dm left", r.Hours, r.Minutes)
}

// IsEditable reports whether fewer than 12 whole hours separate now from ts.
// Hours are truncated toward zero, so 11h59m59s is still editable.
func IsEditable(ts, now time.Time) bool {
	return int64(now.Sub(ts)/time.Hour) < int64(EditWindow/time.Hour)
}

// RemainingEdit returns the time left until 12 hours have elapsed since ts,
// computed from whole elapsed minutes. ok is false once the window closed.
func RemainingEdit(ts, now time.Time) (r Remaining, ok bool) {
	if !IsEditable(ts, now) {
		return Remaining{}, false
	}
	total := int64(EditWindow/time.Minute) - floorMinutes(now.Sub(ts))
	return Remaining{Hours: int(total / 60), Minutes: int(total % 60)}, true
}

func floorMinutes(d time.Duration) int64 {
	m := int64(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return m
}
