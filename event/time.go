package event

import "time"

// timeLayout is RFC3339Nano, the wire format for Event.Timestamp.
const timeLayout = time.RFC3339Nano

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
