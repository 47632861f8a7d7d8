package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// WireLayout is the absolute form exchanged with the backend.
	WireLayout = "2006-01-02T15:04:05.000Z07:00"
	// LocalInputLayout is the wall-clock form used by datetime-local inputs.
	LocalInputLayout = "2006-01-02T15:04"
)

// zone-less layouts some backends emit; interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Timestamp is an absolute instant that serializes as UTC ISO-8601.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds, and
// zone-less forms which are taken as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseLocalInput converts a wall-clock value typed into a form to an
// absolute instant in loc.
func ParseLocalInput(s string, loc *time.Location) (Timestamp, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(LocalInputLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid date and time %q", s)
	}
	return NewTimestamp(t), nil
}

// LocalInput renders the instant as wall-clock time in loc for editing.
func (t Timestamp) LocalInput(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(LocalInputLayout)
}

func (t Timestamp) String() string {
	return t.UTC().Format(WireLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(WireLayout))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
