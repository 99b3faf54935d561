package provider

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DeployDateFields lists the candidate deploy timestamp fields in priority
// order.
var DeployDateFields = []string{
	"createdAt",
	"created_at",
	"created",
	"finishedAt",
	"finished_at",
	"finished",
	"updatedAt",
	"updated_at",
}

var deployDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ExtractDeployDate returns the first candidate field of d that parses as a
// timestamp. Strings are tried against common layouts; numbers are epoch
// milliseconds.
func ExtractDeployDate(d Deploy) (time.Time, bool) {
	for _, field := range DeployDateFields {
		value, ok := d[field]
		if !ok {
			continue
		}
		if t, ok := parseDeployTime(value); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDeployTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, false
		}
		return typed.UTC(), true
	case string:
		return parseDeployString(typed)
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpochMillis(f)
	case float64:
		return fromEpochMillis(typed)
	case int64:
		return fromEpochMillis(float64(typed))
	case int:
		return fromEpochMillis(float64(typed))
	}
	return time.Time{}, false
}

func parseDeployString(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range deployDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return fromEpochMillis(f)
	}
	return time.Time{}, false
}

// maxEpochMillis bounds epoch timestamps to 100,000,000 days either side of
// 1970-01-01. Larger values are not dates.
const maxEpochMillis = 8.64e15

func fromEpochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}
