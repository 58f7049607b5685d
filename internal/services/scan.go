package services

import (
	"fmt"
	"time"
)

// timeLayouts are the forms a DATETIME column comes back in: modernc.org/sqlite
// writes time.Time values in the first layout with _time_format=sqlite and in
// the second one without it, CURRENT_TIMESTAMP defaults use the last one.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeScanner reads a DATETIME column whether the driver hands it over as a
// time.Time or as text (columns of a RETURNING clause carry no declared type).
type timeScanner struct {
	t *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v
		return nil
	case nil:
		*s.t = time.Time{}
		return nil
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	case int64:
		*s.t = time.Unix(v, 0).UTC()
		return nil
	}
	return fmt.Errorf("cannot scan %T into time.Time", src)
}

func (s timeScanner) parse(value string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			*s.t = t
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", value)
}
