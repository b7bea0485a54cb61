package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in       string
		cmd, arg string
		ok       bool
	}{
		{"/start", "start", "", true},
		{"  /Films_Day@legendalf_bot  1 января ", "films_day", "1 января", true},
		{"/schedule_add 1 09:00", "schedule_add", "1 09:00", true},
		{"/", "", "", false},
		{"выдай базу", "", "", false},
	}
	for _, tt := range tests {
		cmd, arg, ok := splitCommand(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.cmd, cmd, tt.in)
		assert.Equal(t, tt.arg, arg, tt.in)
	}
}

func TestTriggersMatch(t *testing.T) {
	for _, s := range []string{"выдай базу", "Легендальф, выдай базу.", "ГЭНДАЛЬФ выдай  базу", "Gandalf, give me the base"} {
		assert.True(t, isBaseTrigger(s), s)
	}
	for _, s := range []string{"выдай базу пожалуйста", "база", "саруман, выдай базу"} {
		assert.False(t, isBaseTrigger(s), s)
	}
	for _, s := range []string{"Гэндальф?", " legendalf? ", "гендальф?"} {
		assert.True(t, isMediaTrigger(s), s)
	}
	assert.False(t, isMediaTrigger("Гэндальф"))
	assert.False(t, isMediaTrigger("где Гэндальф?"))
}

func TestQuoteToSave(t *testing.T) {
	q, ok := quoteToSave("сохрани базу: Даже самый маленький человек может изменить ход будущего.")
	require.True(t, ok)
	assert.Equal(t, "Даже самый маленький человек может изменить ход будущего.", q)

	q, ok = quoteToSave("Сохрани  базу:")
	assert.True(t, ok)
	assert.Empty(t, q)

	_, ok = quoteToSave("сохрани это")
	assert.False(t, ok)
}

func TestParseMonthArg(t *testing.T) {
	tests := map[string]string{
		"02.26":        "2026-02-01",
		"2/2026":       "2026-02-01",
		"Февраль 2026": "2026-02-01",
		"декабря 1999": "1999-12-01",
	}
	for in, want := range tests {
		got, ok := parseMonthArg(in, time.UTC)
		require.True(t, ok, in)
		assert.Equal(t, want, got.Format("2006-01-02"), in)
	}
	for _, in := range []string{"13.26", "февраль", "брюмер 2026", "март 3000"} {
		_, ok := parseMonthArg(in, time.UTC)
		assert.False(t, ok, in)
	}
}

func TestParseDayArg(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := map[string]string{
		"01.01.2026":     "2026-01-01",
		"1-1-26":         "2026-01-01",
		"1 января":       "2025-01-01",
		"9 мая 2026":     "2026-05-09",
		"29 февраля 2028": "2028-02-29",
	}
	for in, want := range tests {
		got, ok := parseDayArg(in, now)
		require.True(t, ok, in)
		assert.Equal(t, want, got.Format("2006-01-02"), in)
	}
	for _, in := range []string{"31.02.2026", "29 февраля 2027", "завтра", "1 января 2026 года"} {
		_, ok := parseDayArg(in, now)
		assert.False(t, ok, in)
	}
}
