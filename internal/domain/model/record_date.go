package model

import (
	"strings"
	"time"
)

// RecordDateLayout is the date format the channel record store expects.
const RecordDateLayout = "2006-01-02 15:04:05"

// LegacyZeroDate is what older records hold instead of an empty string.
const LegacyZeroDate = "0000-00-00 00:00:00"

// FormatRecordDate renders epoch seconds in local time. Zero or negative
// timestamps encode as "".
func FormatRecordDate(epoch int64) string {
	if epoch <= 0 {
		return ""
	}
	return time.Unix(epoch, 0).In(time.Local).Format(RecordDateLayout)
}

// ParseRecordDate reads a record-store date in local time. The second return
// is false for "", the legacy sentinel and anything unparsable.
func ParseRecordDate(s string) (time.Time, bool) {
	if !IsPopulatedDate(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(RecordDateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsPopulatedDate is the single "is this billing field filled in" test.
func IsPopulatedDate(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != LegacyZeroDate
}
