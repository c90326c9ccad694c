package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// authorList stores authors as TEXT[] on Postgres and as a JSON array on SQLite.
type authorList struct {
	dialect Dialect
	values  []string
}

func (a authorList) Value() (driver.Value, error) {
	values := a.values
	if values == nil {
		values = []string{}
	}
	if a.dialect == Postgres {
		return pq.StringArray(values).Value()
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (a *authorList) Scan(src any) error {
	if a.dialect == Postgres {
		var arr pq.StringArray
		if err := arr.Scan(src); err != nil {
			return err
		}
		a.values = []string(arr)
		return nil
	}
	raw, err := textBytes(src)
	if err != nil || len(raw) == 0 {
		a.values = nil
		return err
	}
	return json.Unmarshal(raw, &a.values)
}

// jsonColumn round-trips a value through a JSON/JSONB/TEXT column.
type jsonColumn struct {
	target any
}

func (j *jsonColumn) Scan(src any) error {
	raw, err := textBytes(src)
	if err != nil || len(raw) == 0 {
		return err
	}
	return json.Unmarshal(raw, j.target)
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(raw), nil
}

// nullTime accepts native timestamps and the text layouts SQLite hands back.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (n *nullTime) Scan(src any) error {
	n.Time, n.Valid = time.Time{}, false
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case int64:
		n.Time, n.Valid = time.Unix(v, 0).UTC(), true
		return nil
	}

	raw, err := textBytes(src)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(string(raw))
	if i := strings.Index(text, " m="); i > 0 {
		text = text[:i]
	}
	for _, layout := range timeLayouts {
		if at, err := time.Parse(layout, text); err == nil {
			n.Time, n.Valid = at.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unsupported time value %q", text)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	at := n.Time
	return &at
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func textBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported column type %T", src)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
