package telegram

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	baseTriggerRe = regexp.MustCompile(`^\s*(?:(?:легэндальф|легендальф|гэндальф|гендальф)\s*,?\s*)?выдай\s+базу\s*\.?\s*$` +
		`|^\s*(?:legendalf|gandalf)\s*,?\s*(?:give\s+me\s+the|drop\s+the)\s+base\s*\.?\s*$`)
	mediaTriggerRe = regexp.MustCompile(`^\s*(?:гэндальф|гендальф|легэндальф|легендальф|gandalf|gendalf|legendalf)\?\s*$`)
	saveQuoteRe    = regexp.MustCompile(`(?is)^\s*сохрани\s+базу\s*:\s*(.*?)\s*$`)

	monthYearRe = regexp.MustCompile(`^(0?[1-9]|1[0-2])[./](\d{2}|\d{4})$`)
	dayDateRe   = regexp.MustCompile(`^(0?[1-9]|[12]\d|3[01])[./-](0?[1-9]|1[0-2])[./-](\d{2}|\d{4})$`)
)

var monthAliases = map[string]time.Month{
	"январь": time.January, "января": time.January,
	"февраль": time.February, "февраля": time.February,
	"март": time.March, "марта": time.March,
	"апрель": time.April, "апреля": time.April,
	"май": time.May, "мая": time.May,
	"июнь": time.June, "июня": time.June,
	"июль": time.July, "июля": time.July,
	"август": time.August, "августа": time.August,
	"сентябрь": time.September, "сентября": time.September,
	"октябрь": time.October, "октября": time.October,
	"ноябрь": time.November, "ноября": time.November,
	"декабрь": time.December, "декабря": time.December,
}

// splitCommand splits "/cmd@bot args" into "cmd" and "args".
func splitCommand(text string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), head != ""
}

func isBaseTrigger(text string) bool {
	return baseTriggerRe.MatchString(strings.ToLower(strings.TrimSpace(text)))
}

func isMediaTrigger(text string) bool {
	return mediaTriggerRe.MatchString(strings.ToLower(strings.TrimSpace(text)))
}

// quoteToSave extracts the text of a "сохрани базу: ..." message.
func quoteToSave(text string) (string, bool) {
	m := saveQuoteRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func fullYear(s string) int {
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}

// parseMonthArg accepts "02.26", "2/2026" or "февраль 2026" and returns the
// first day of that month in loc.
func parseMonthArg(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if m := monthYearRe.FindStringSubmatch(raw); m != nil {
		month, _ := strconv.Atoi(m[1])
		return time.Date(fullYear(m[2]), time.Month(month), 1, 0, 0, 0, 0, loc), true
	}
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	month, ok := monthAliases[parts[0]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1900 || year > 2100 {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, loc), true
}

// parseDayArg accepts "01.01.2026", "1-1-26", "1 января" or "1 января 2026".
// A missing year means the year of now.
func parseDayArg(raw string, now time.Time) (time.Time, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	loc := now.Location()
	if m := dayDateRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return validDate(fullYear(m[3]), time.Month(month), day, loc)
	}

	parts := strings.Fields(raw)
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := monthAliases[strings.Trim(parts[1], ".,")]
	if !ok {
		return time.Time{}, false
	}
	year := now.Year()
	if len(parts) == 3 {
		y := strings.Trim(parts[2], ".,")
		if _, err := strconv.Atoi(y); err != nil {
			return time.Time{}, false
		}
		year = fullYear(y)
	}
	return validDate(year, month, day, loc)
}

func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
