package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestampForms(t *testing.T) {
	want := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2025-06-01T08:30:00Z",
		"2025-06-01T08:30:00.000Z",
		"2025-06-01T10:30:00+02:00",
		"2025-06-01T08:30:00",
		"2025-06-01T08:30",
	} {
		ts, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("%q => %v, want %v", in, ts.Time, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLocalInputRoundTrip(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts, err := ParseLocalInput("2025-01-15T09:00", loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ts.String(); got != "2025-01-15T03:30:00.000Z" {
		t.Fatalf("absolute form = %s", got)
	}
	if got := ts.LocalInput(loc); got != "2025-01-15T09:00" {
		t.Fatalf("local form = %s", got)
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)))
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-01-02T02:04:05.000Z"` {
		t.Fatalf("marshal = %s", b)
	}
	var back Timestamp
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(ts.Time) {
		t.Fatalf("unmarshal = %v, %v", back, err)
	}
}
