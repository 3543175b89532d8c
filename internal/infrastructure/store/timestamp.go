package store

import (
	"fmt"
	"time"
)

var timeLayouts = []string{
	SQLiteTimeFormat,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// Timestamp scans a timestamp from either driver: pgx hands over time.Time,
// SQLite hands over TEXT.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) Scan(src any) error {
	var nt NullTimestamp
	if err := nt.Scan(src); err != nil {
		return err
	}
	if !nt.Valid {
		return fmt.Errorf("store: cannot scan NULL into Timestamp")
	}
	t.Time = nt.Time
	return nil
}

// NullTimestamp is the nullable variant of Timestamp.
type NullTimestamp struct {
	Time  time.Time
	Valid bool
}

func (t *NullTimestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("store: unsupported timestamp type %T", src)
	}
}

// Ptr returns nil when the value is NULL.
func (t NullTimestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (t *NullTimestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("store: cannot parse timestamp %q", s)
}
