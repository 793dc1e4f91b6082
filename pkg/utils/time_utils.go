package utils

import "time"

// FromUnixNano converts a stored nanosecond timestamp to UTC.
// Returns zero time if t<=0 to let callers decide how to render.
func FromUnixNano(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(0, t).UTC()
}

func FromUnixNanoPtr(t *int64) *time.Time {
	if t == nil || *t <= 0 {
		return nil
	}
	v := FromUnixNano(*t)
	return &v
}

func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
