// Package memtime implements the time parsing and canonicalization rules
// shared by every component that touches a timestamp: recorded_at/occurred_at
// on records, start/end on recall, and the embedded time mini-language in
// recall's free-text query.
package memtime

import (
	"regexp"
	"time"

	"github.com/chirino/agent-memory/internal/memerr"
)

// Bound selects which end of a bare calendar date a parse resolves to.
type Bound int

const (
	// Start resolves a bare YYYY-MM-DD to 00:00:00 UTC.
	Start Bound = iota
	// End resolves a bare YYYY-MM-DD to 23:59:59 UTC.
	End
)

var dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NowUTC returns the current instant as a canonical RFC3339-seconds-Z
// string alongside its Unix timestamp.
func NowUTC() (string, int64) {
	now := time.Now().UTC()
	return canonicalUTC(now), now.Unix()
}

// NowLocal returns the current instant in the local zone as an
// RFC3339-seconds string alongside the zone's offset east of UTC, in
// seconds.
func NowLocal() (string, int) {
	now := time.Now()
	_, offset := now.Zone()
	return now.Truncate(time.Second).Format(time.RFC3339), offset
}

// Parse parses input as either RFC3339 or a bare YYYY-MM-DD date (resolved
// according to bound), tolerating one specific lowercase-date/time
// separator/zone spelling, and returns the Unix timestamp plus the
// canonical string form.
func Parse(input string, bound Bound) (int64, string, error) {
	text := trimSpace(input)
	if text == "" {
		return 0, "", &memerr.InvalidTimeError{Reason: "empty"}
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		utc := t.UTC()
		return utc.Unix(), canonicalUTC(utc), nil
	}

	if dateOnlyRe.MatchString(text) {
		date, err := time.Parse("2006-01-02", text)
		if err != nil {
			return 0, "", &memerr.InvalidTimeError{Reason: "invalid date"}
		}
		var dt time.Time
		switch bound {
		case Start:
			dt = date
		case End:
			dt = date.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
		return dt.Unix(), text, nil
	}

	if patched, ok := casePatch(text); ok {
		if t, err := time.Parse(time.RFC3339, patched); err == nil {
			utc := t.UTC()
			return utc.Unix(), canonicalUTC(utc), nil
		}
	}

	return 0, "", &memerr.UnsupportedTimeFormatError{Input: input}
}

// casePatch tries the single tolerance spec.md permits: toggling the
// date/time separator at byte 10 from 't' to 'T' and a trailing 'z' to
// 'Z'. It only applies to ASCII input and only reports success when at
// least one toggle actually changed something.
func casePatch(text string) (string, bool) {
	if !isASCII(text) {
		return "", false
	}
	b := []byte(text)
	changed := false
	if len(b) > 10 && b[10] == 't' {
		b[10] = 'T'
		changed = true
	}
	if len(b) > 0 && b[len(b)-1] == 'z' {
		b[len(b)-1] = 'Z'
		changed = true
	}
	if !changed {
		return "", false
	}
	return string(b), true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func canonicalUTC(t time.Time) string {
	return t.Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
