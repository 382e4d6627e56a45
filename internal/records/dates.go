package records

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical calendar date layout.
const ISOLayout = "2006-01-02"

var (
	isoPrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	// zoneName matches the trailing zone name of a JavaScript Date string, as in "GMT-0500 (Eastern Standard Time)".
	zoneName = regexp.MustCompile(`\s*\([^()]*\)$`)
)

// fallbackLayouts are tried in order for strings that are neither ISO nor M/D/YYYY.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 2 2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
}

// ToISODate converts a date-like value to its YYYY-MM-DD form.
//
// Accepted values are time.Time (local calendar date), numeric epoch milliseconds, ISO strings
// (with anything after the date part), M/D/YYYY strings and a few other common textual layouts.
// Calendar-invalid dates, such as a 32nd day, are rejected.
// It returns false for anything it can't interpret, and never panics.
func ToISODate(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.In(time.Local).Format(ISOLayout), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return ToISODate(*x)
	case string:
		return stringToISO(x)
	}

	ms, ok := toFloat(v)
	if !ok {
		return "", false
	}
	return epochToISO(ms)
}

// MustISO returns the ISO date of v, or "" if it is not a valid date.
func MustISO(v any) string {
	d, _ := ToISODate(v)
	return d
}

func epochToISO(ms float64) (string, bool) {
	// Outside of this range, the year can't be formatted as 4 digits.
	const maxAbs = 8.64e15
	if ms > maxAbs || ms < -maxAbs {
		return "", false
	}
	t := time.UnixMilli(int64(ms)).In(time.Local)
	if t.Year() < 0 || t.Year() > 9999 {
		return "", false
	}
	return t.Format(ISOLayout), true
}

func stringToISO(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := isoPrefix.FindStringSubmatch(s); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}

	if m := slashDate.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}

	s = zoneName.ReplaceAllString(s, "")
	for _, layout := range fallbackLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err != nil {
			continue
		}
		return t.In(time.Local).Format(ISOLayout), true
	}
	return "", false
}

// calendarDate validates the components by round-tripping them through a UTC date.
func calendarDate(year, month, day string) (string, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

// ActiveOn reports whether an entity spanning [start, end] is active on target.
// All dates are ISO strings, "" meaning absent. An absent end means the entity is still open, and the
// end date itself is still an active day.
func ActiveOn(start, end, target string) bool {
	if start == "" || target == "" {
		return false
	}
	if start > target {
		return false
	}
	if end == "" {
		return true
	}
	return end >= target
}

// AddDays returns the ISO date days after iso, or "" if iso is not a valid ISO date or the result falls
// outside of years 0 to 9999.
func AddDays(iso string, days int) string {
	t, err := time.ParseInLocation(ISOLayout, iso, time.UTC)
	if err != nil {
		return ""
	}
	t = t.AddDate(0, 0, days)
	if t.Year() < 0 || t.Year() > 9999 {
		return ""
	}
	return t.Format(ISOLayout)
}

// AddHours adds hours to the midnight of iso and returns the resulting calendar date.
// Only whole days count: 47 hours after midnight is still the next day.
// It returns "" if iso is not a valid ISO date or hours is negative.
func AddHours(iso string, hours int) string {
	if hours < 0 {
		return ""
	}
	return AddDays(iso, hours/24)
}
