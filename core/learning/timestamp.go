package learning

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Layouts accepted from the backend and from html date/datetime-local inputs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04"
)

// Timestamp is a zone-less backend timestamp ("2024-03-01T09:30:00").
type Timestamp struct {
	time.Time
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, errors.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format("2006-01-02T15:04:05") + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

// Date formats for a date input; empty when zero.
func (t Timestamp) Date() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DateTime formats for a datetime-local input; empty when zero.
func (t Timestamp) DateTime() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format("2006-01-02 15:04")
}
