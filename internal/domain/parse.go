package domain

import (
	"regexp"
	"strings"
	"time"
)

var (
	timeColonRe = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)
	timeDotRe   = regexp.MustCompile(`^(?:[01]\d|2[0-3])\.[0-5]\d$`)
)

const (
	DateLayout     = "2006-01-02"
	birthdayLayout = "02.01.2006"
)

// ParseTime accepts "HH:MM" or "HH.MM" and returns the colon form.
func ParseTime(s string) (string, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return "", &ValidationError{Field: "time", Reason: "empty", Value: s}
	}
	if timeDotRe.MatchString(raw) {
		raw = strings.Replace(raw, ".", ":", 1)
	}
	if !timeColonRe.MatchString(raw) {
		return "", &ValidationError{Field: "time", Reason: "bad_time_format", Value: s}
	}
	return raw, nil
}

// ValidTime reports whether s is a stored, well-formed HH:MM value.
func ValidTime(s string) bool {
	return timeColonRe.MatchString(s)
}

// ValidateTZ checks that the tz is a valid IANA location and returns its canonical name.
func ValidateTZ(tz string) (string, error) {
	name := strings.TrimSpace(tz)
	if name == "" {
		return "", &ValidationError{Field: "timezone", Reason: "empty", Value: tz}
	}
	// "Local" would follow the host zone instead of naming one.
	if name == "Local" {
		return "", &ValidationError{Field: "timezone", Reason: "bad_timezone", Value: tz}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", &ValidationError{Field: "timezone", Reason: "bad_timezone", Value: tz}
	}
	return loc.String(), nil
}

// ResolveLocation loads tz, falling back to UTC when it cannot be resolved.
func ResolveLocation(tz string) *time.Location {
	if tz == "" || tz == "Local" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalClock returns the wall-clock "HH:MM" and calendar date "YYYY-MM-DD" of t.
func LocalClock(t time.Time) (hhmm, day string) {
	return t.Format("15:04"), t.Format(DateLayout)
}

// ParseBirthday parses "DD.MM.YYYY" into a date at UTC midnight.
func ParseBirthday(s string) (time.Time, error) {
	d, err := time.Parse(birthdayLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "birthday", Reason: "bad_date_format", Value: s}
	}
	return d, nil
}

// FormatBirthday renders a birthday as DD.MM.YYYY, or a placeholder when unset.
func FormatBirthday(d *time.Time) string {
	if d == nil {
		return "не задан"
	}
	return d.Format(birthdayLayout)
}
