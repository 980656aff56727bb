// Package model defines the wire and storage shapes for memory records and
// the remember/recall request/response types, decoding generic JSON-RPC
// tool arguments into typed Go structs via mitchellh/mapstructure.
package model

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/chirino/agent-memory/internal/memerr"
)

// Record is one append-only log entry, persisted as a single JSON line.
type Record struct {
	ID         string   `json:"id"`
	Namespace  string   `json:"namespace"`
	RecordedAt string   `json:"recorded_at"`
	OccurredAt *string  `json:"occurred_at,omitempty"`
	Keywords   []string `json:"keywords"`
	Slice      string   `json:"slice"`
	Diary      string   `json:"diary"`
	Importance *int     `json:"importance,omitempty"`
	Source     *string  `json:"source,omitempty"`
}

// RememberArgs is the decoded, trimmed form of a remember tool call.
type RememberArgs struct {
	Namespace  string
	Keywords   []string
	Slice      string
	Diary      string
	OccurredAt string
	Importance *int
	Source     string
}

type rememberWire struct {
	Namespace  string   `mapstructure:"namespace"`
	Keywords   []string `mapstructure:"keywords"`
	Slice      string   `mapstructure:"slice"`
	Diary      string   `mapstructure:"diary"`
	OccurredAt string   `mapstructure:"occurred_at"`
	Importance *int     `mapstructure:"importance"`
	Source     string   `mapstructure:"source"`
}

// DecodeRememberArgs decodes raw tool-call arguments into RememberArgs,
// validating that namespace/slice/diary are non-empty after trimming.
// keywords is decoded as-is (trimmed, empty entries dropped); whether the
// resulting set is non-empty is validated by the caller after
// keyword.Normalize, since time-like tokens can still strip it to empty.
func DecodeRememberArgs(raw map[string]interface{}) (RememberArgs, error) {
	var wire rememberWire
	if err := decode(raw, &wire); err != nil {
		return RememberArgs{}, err
	}

	namespace := strings.TrimSpace(wire.Namespace)
	if namespace == "" {
		return RememberArgs{}, &memerr.EmptyFieldError{Field: "namespace"}
	}
	slice := strings.TrimSpace(wire.Slice)
	if slice == "" {
		return RememberArgs{}, &memerr.EmptyFieldError{Field: "slice"}
	}
	diary := strings.TrimSpace(wire.Diary)
	if diary == "" {
		return RememberArgs{}, &memerr.EmptyFieldError{Field: "diary"}
	}

	return RememberArgs{
		Namespace:  namespace,
		Keywords:   trimNonEmpty(wire.Keywords),
		Slice:      slice,
		Diary:      diary,
		OccurredAt: strings.TrimSpace(wire.OccurredAt),
		Importance: wire.Importance,
		Source:     strings.TrimSpace(wire.Source),
	}, nil
}

// RecallArgs is the decoded, trimmed, clamped form of a recall tool call.
type RecallArgs struct {
	Namespace    string
	Keywords     []string
	Start        string
	End          string
	Query        string
	Limit        int
	IncludeDiary bool
}

type recallWire struct {
	Namespace    string   `mapstructure:"namespace"`
	Keywords     []string `mapstructure:"keywords"`
	Start        string   `mapstructure:"start"`
	End          string   `mapstructure:"end"`
	Query        string   `mapstructure:"query"`
	Limit        *int     `mapstructure:"limit"`
	IncludeDiary bool     `mapstructure:"include_diary"`
}

const (
	defaultRecallLimit = 20
	maxRecallLimit     = 100
)

// DecodeRecallArgs decodes raw tool-call arguments into RecallArgs. limit
// defaults to 20 when absent or zero and is clamped to 100.
func DecodeRecallArgs(raw map[string]interface{}) (RecallArgs, error) {
	var wire recallWire
	if err := decode(raw, &wire); err != nil {
		return RecallArgs{}, err
	}

	namespace := strings.TrimSpace(wire.Namespace)
	if namespace == "" {
		return RecallArgs{}, &memerr.EmptyFieldError{Field: "namespace"}
	}

	limit := defaultRecallLimit
	if wire.Limit != nil && *wire.Limit != 0 {
		limit = *wire.Limit
	}
	if limit > maxRecallLimit {
		limit = maxRecallLimit
	}
	if limit < 0 {
		limit = defaultRecallLimit
	}

	return RecallArgs{
		Namespace:    namespace,
		Keywords:     trimNonEmpty(wire.Keywords),
		Start:        strings.TrimSpace(wire.Start),
		End:          strings.TrimSpace(wire.End),
		Query:        strings.TrimSpace(wire.Query),
		Limit:        limit,
		IncludeDiary: wire.IncludeDiary,
	}, nil
}

// RememberRecorded is what AppendMemory reports back after a successful
// write: the generated ID plus the canonicalized timestamps and keywords
// actually persisted.
type RememberRecorded struct {
	ID         string   `json:"id"`
	RecordedAt string   `json:"recorded_at"`
	OccurredAt *string  `json:"occurred_at,omitempty"`
	Keywords   []string `json:"keywords"`
}

// RecallItem is a single hit returned by recall. MatchedKeywords is a
// pointer so that "no keyword filter was given" (nil, field omitted) is
// distinguishable from "a keyword filter was given but matched nothing
// here" (non-nil empty slice, field present as []).
type RecallItem struct {
	ID              string    `json:"id"`
	RecordedAt      string    `json:"recorded_at"`
	OccurredAt      *string   `json:"occurred_at,omitempty"`
	Keywords        []string  `json:"keywords"`
	MatchedKeywords *[]string `json:"matched_keywords,omitempty"`
	Slice           string    `json:"slice"`
	Diary           *string   `json:"diary,omitempty"`
	Importance      *int      `json:"importance,omitempty"`
	Source          *string   `json:"source,omitempty"`
}

// RecallResult is the full response to a recall call.
type RecallResult struct {
	Total int          `json:"total"`
	Items []RecallItem `json:"items"`
}

// RenderTextSummary renders a one-line-per-hit human-readable summary,
// used by the --text CLI output path.
func (r RecallResult) RenderTextSummary() string {
	if len(r.Items) == 0 {
		return "no memories matched."
	}

	lines := make([]string, 0, len(r.Items)+1)
	lines = append(lines, formatHitCount(len(r.Items)))

	for i, item := range r.Items {
		t := item.RecordedAt
		if item.OccurredAt != nil && *item.OccurredAt != "" {
			t = *item.OccurredAt
		}
		kws := ""
		if len(item.Keywords) > 0 {
			kws = " keywords=" + strings.Join(item.Keywords, ",")
		}
		lines = append(lines, formatLine(i+1, t, kws, item.ID, truncateOneLine(item.Slice, 120)))
	}

	return strings.Join(lines, "\n")
}

func formatHitCount(n int) string {
	return "matched " + itoa(n) + " memories:"
}

func formatLine(i int, t, kws, id, slice string) string {
	return itoa(i) + ". [" + t + "]" + kws + " id=" + id + " slice=" + slice
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// truncateOneLine collapses newlines to spaces, trims, and truncates to
// maxLen runes with a trailing ellipsis.
func truncateOneLine(text string, maxLen int) string {
	s := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(text))
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		t := strings.TrimSpace(s)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func decode(raw map[string]interface{}, dst interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

