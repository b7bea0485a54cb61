package content

import (
	"fmt"
	"html"
	"strings"
)

// MaxMessageLen keeps packed messages under the chat message limit.
const MaxMessageLen = 4000

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// HolidayCaption renders the HTML caption of a digest.
func HolidayCaption(d *HolidayDigest) string {
	lines := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		line := "• " + html.EscapeString(it.Title)
		switch {
		case it.Description != "":
			line += " — " + html.EscapeString(it.Description)
		case it.Category != "":
			line += " (" + html.EscapeString(it.Category) + ")"
		}
		lines = append(lines, line)
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = "Сегодня подходящий день, чтобы просто радоваться жизни."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Сегодня (%s) Средиземье празднует:</b>\n%s", d.Date.Format("02.01.2006"), body)
	if names := nameSection(d); names != "" {
		b.WriteString("\n\n")
		b.WriteString(names)
	}
	return b.String()
}

func nameSection(d *HolidayDigest) string {
	clean := make([]string, 0, len(d.Names))
	for _, n := range d.Names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, html.EscapeString(n))
		}
	}
	if len(clean) == 0 {
		return ""
	}
	day := fmt.Sprintf("%d %s", d.Date.Day(), monthsGenitive[d.Date.Month()-1])
	return "<b>Кто сегодня именинник?</b>\n" +
		day + " празднуют именины " + strings.Join(clean, ", ") + ".\n" +
		"Уважаемые именинники, примите поздравления от Гэндальфа!"
}

// Pack joins blocks with blank lines into messages of at most max runes.
// A single block longer than max is kept whole.
func Pack(blocks []string, max int) []string {
	var (
		out     []string
		current string
	)
	for _, block := range blocks {
		if current == "" {
			current = block
			continue
		}
		candidate := current + "\n\n" + block
		if len([]rune(candidate)) > max {
			out = append(out, current)
			current = block
			continue
		}
		current = candidate
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
