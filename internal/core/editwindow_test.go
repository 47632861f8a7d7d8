package core

import (
	"testing"
	"time"
)

func TestIsEditableBoundary(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just created", 0, true},
		{"one hour", time.Hour, true},
		{"12h minus 1s", 12*time.Hour - time.Second, true},
		{"exactly 12h", 12 * time.Hour, false},
		{"13h", 13 * time.Hour, false},
		{"future timestamp", -2 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsEditable(ts, ts.Add(tc.elapsed)); got != tc.want {
				t.Fatalf("IsEditable after %v = %v, want %v", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestRemainingEdit(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    string
		ok      bool
	}{
		{0, "12h 0m left", true},
		{30 * time.Second, "12h 0m left", true},
		{90 * time.Minute, "10h 30m left", true},
		{11*time.Hour + 59*time.Minute, "0h 1m left", true},
		{11*time.Hour + 59*time.Minute + 59*time.Second, "0h 1m left", true},
		{12 * time.Hour, "", false},
		{48 * time.Hour, "", false},
	}
	for _, tc := range cases {
		r, ok := RemainingEdit(ts, ts.Add(tc.elapsed))
		if ok != tc.ok {
			t.Fatalf("after %v ok=%v, want %v", tc.elapsed, ok, tc.ok)
		}
		if ok && r.String() != tc.want {
			t.Fatalf("after %v remaining=%q, want %q", tc.elapsed, r.String(), tc.want)
		}
	}
}

func TestRemainingEditFutureTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 0, 30, 0, time.UTC)
	now := ts.Add(-30 * time.Second)
	r, ok := RemainingEdit(ts, now)
	if !ok {
		t.Fatalf("future timestamp must be editable")
	}
	if r.Hours != 12 || r.Minutes != 1 {
		t.Fatalf("got %+v", r)
	}
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !FixedClock(at).Now().Equal(at) {
		t.Fatalf("fixed clock drifted")
	}
}
