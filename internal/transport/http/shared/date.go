package shared

import (
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp. Blank input yields the
// zero time. Results are in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	var err error
	for _, layout := range dateLayouts {
		var parsed time.Time
		if parsed, err = time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, err
}
