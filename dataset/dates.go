package dataset

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// parseUnix converts a date cell to unix seconds. Values without a zone are
// read as UTC.
func parseUnix(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func formatUnix(value string) (string, bool) {
	ts, ok := parseUnix(value)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(ts, 10), true
}
