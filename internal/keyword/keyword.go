// Package keyword implements the normalization and time-like filtering
// rules applied to every keyword a caller attaches to a memory record.
package keyword

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/chirino/agent-memory/internal/memtime"
)

// Normalize trims, lowercases, drops time-like tokens, and deduplicates
// keywords in first-seen order. Time is managed via occurred_at/start/end/
// query, not keywords; this is a backstop so date-shaped strings never
// pollute the keyword vocabulary that keywords_list/keywords_list_global
// report on.
func Normalize(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		if IsTimeLike(trimmed) {
			continue
		}
		norm := strings.ToLower(trimmed)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}

	return out
}

// IsTimeLike reports whether text looks like a timestamp, a date, a
// start..end range, or a Chinese calendrical token (年/月/日), any of
// which belong in occurred_at/start/end/query rather than in keywords.
func IsTimeLike(text string) bool {
	compact := stripWhitespace(text)
	if compact == "" {
		return false
	}

	if _, _, err := memtime.Parse(compact, memtime.Start); err == nil {
		return true
	}

	if a, b, found := cutRange(compact); found {
		if _, _, err := memtime.Parse(a, memtime.Start); err == nil {
			if _, _, err := memtime.Parse(b, memtime.End); err == nil {
				return true
			}
		}
	}

	if _, _, _, ok := parseYMDChinese(compact); ok {
		return true
	}

	if isYearTokenZH(compact) || isMonthTokenZH(compact) || isDayTokenZH(compact) {
		return true
	}

	return false
}

func cutRange(s string) (string, string, bool) {
	idx := strings.Index(s, "..")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+2:], true
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isYearTokenZH(text string) bool {
	num, ok := cutSuffix(text, "年")
	if !ok || len(num) != 4 || !allDigits(num) {
		return false
	}
	y, err := strconv.Atoi(num)
	if err != nil {
		return false
	}
	return y >= 1 && y <= 9999
}

func isMonthTokenZH(text string) bool {
	num, ok := cutSuffix(text, "月")
	if !ok || num == "" || !allDigits(num) {
		return false
	}
	m, err := strconv.Atoi(num)
	if err != nil {
		return false
	}
	return m >= 1 && m <= 12
}

func isDayTokenZH(text string) bool {
	num, ok := cutSuffix(text, "日")
	if !ok || num == "" || !allDigits(num) {
		return false
	}
	d, err := strconv.Atoi(num)
	if err != nil {
		return false
	}
	return d >= 1 && d <= 31
}

// parseYMDChinese parses "YYYY年M月D日" with nothing trailing the 日.
func parseYMDChinese(text string) (int, int, int, bool) {
	yPart, rest, ok := strings.Cut(text, "年")
	if !ok {
		return 0, 0, 0, false
	}
	mPart, rest, ok := strings.Cut(rest, "月")
	if !ok {
		return 0, 0, 0, false
	}
	dPart, tail, ok := strings.Cut(rest, "日")
	if !ok {
		return 0, 0, 0, false
	}
	if tail != "" || yPart == "" || mPart == "" || dPart == "" {
		return 0, 0, 0, false
	}
	if !allDigits(yPart) || !allDigits(mPart) || !allDigits(dPart) {
		return 0, 0, 0, false
	}
	y, err := strconv.Atoi(yPart)
	if err != nil {
		return 0, 0, 0, false
	}
	m, err := strconv.Atoi(mPart)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, 0, false
	}
	d, err := strconv.Atoi(dPart)
	if err != nil || d < 1 || d > 31 {
		return 0, 0, 0, false
	}
	return y, m, d, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cutSuffix(s, suffix string) (string, bool) {
	if !strings.HasSuffix(s, suffix) {
		return "", false
	}
	return s[:len(s)-len(suffix)], true
}
