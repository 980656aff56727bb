// Package engine is the top-level facade over per-namespace stores: it
// owns namespace lifecycle (lazily opening and caching one store per
// namespace for the life of the process) and renders tool-call results
// as a content/data envelope, independent of the transport that calls it.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/chirino/agent-memory/internal/index"
	"github.com/chirino/agent-memory/internal/keyword"
	"github.com/chirino/agent-memory/internal/memerr"
	"github.com/chirino/agent-memory/internal/memtime"
	"github.com/chirino/agent-memory/internal/model"
	"github.com/chirino/agent-memory/internal/namespace"
	"github.com/chirino/agent-memory/internal/store"
)

// ContentItem is one entry of a tool result's content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the shape every engine operation returns: a short
// human-readable summary plus the structured payload behind it.
type ToolResult struct {
	Content []ContentItem          `json:"content"`
	Data    map[string]interface{} `json:"data"`
}

// Engine manages namespace stores under a single root directory.
type Engine struct {
	rootDir    string
	namespaces map[string]*store.NamespaceStore
}

// New returns an Engine rooted at rootDir. No namespace is opened until
// first use.
func New(rootDir string) *Engine {
	return &Engine{rootDir: rootDir, namespaces: make(map[string]*store.NamespaceStore)}
}

// Now reports the current instant in UTC and in the local zone.
func (e *Engine) Now() (ToolResult, error) {
	utcRFC3339, utcTS := memtime.NowUTC()
	localRFC3339, localOffsetSeconds := memtime.NowLocal()
	localOffsetMinutes := localOffsetSeconds / 60
	localOffsetText := formatOffset(localOffsetSeconds)

	text := fmt.Sprintf("current time: %s (local, UTC%s) | %s (UTC)", localRFC3339, localOffsetText, utcRFC3339)

	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		Data: map[string]interface{}{
			"utc_rfc3339":          utcRFC3339,
			"utc_ts":               utcTS,
			"local_rfc3339":        localRFC3339,
			"local_offset_seconds": localOffsetSeconds,
			"local_offset_minutes": localOffsetMinutes,
		},
	}, nil
}

// Remember opens (or reuses) the target namespace and appends one record.
func (e *Engine) Remember(args model.RememberArgs) (ToolResult, error) {
	st, err := e.getOrOpenNamespace(args.Namespace)
	if err != nil {
		return ToolResult{}, err
	}

	ns := st.Namespace()
	recorded, err := st.AppendMemory(args)
	if err != nil {
		return ToolResult{}, err
	}

	text := fmt.Sprintf("memory recorded: %s (namespace=%s)", recorded.ID, ns)

	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		Data: map[string]interface{}{
			"id":          recorded.ID,
			"namespace":   ns,
			"recorded_at": recorded.RecordedAt,
			"occurred_at": recorded.OccurredAt,
			"keywords":    recorded.Keywords,
		},
	}, nil
}

// Recall opens (or reuses) the target namespace and runs a recall query.
func (e *Engine) Recall(args model.RecallArgs) (ToolResult, error) {
	st, err := e.getOrOpenNamespace(args.Namespace)
	if err != nil {
		return ToolResult{}, err
	}

	ns := st.Namespace()
	result, err := st.Recall(args)
	if err != nil {
		return ToolResult{}, err
	}

	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: result.RenderTextSummary()}},
		Data: map[string]interface{}{
			"namespace": ns,
			"total":     result.Total,
			"items":     result.Items,
		},
	}, nil
}

// KeywordsList reports every keyword recorded in one namespace.
func (e *Engine) KeywordsList(namespaceArg string) (ToolResult, error) {
	st, err := e.getOrOpenNamespace(strings.TrimSpace(namespaceArg))
	if err != nil {
		return ToolResult{}, err
	}

	ns := st.Namespace()
	keywords, err := st.ListKeywords()
	if err != nil {
		return ToolResult{}, err
	}
	total := len(keywords)

	var text string
	if total == 0 {
		text = fmt.Sprintf("namespace=%s: no keywords yet.", ns)
	} else {
		text = fmt.Sprintf("namespace=%s: %d keywords.", ns, total)
	}

	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		Data: map[string]interface{}{
			"namespace": ns,
			"total":     total,
			"keywords":  keywords,
		},
	}, nil
}

// GlobalKeywordEntry is one row of a keywords_list_global report.
type GlobalKeywordEntry struct {
	Keyword    string `json:"keyword"`
	Namespaces int    `json:"namespaces"`
	Items      int    `json:"items"`
}

// KeywordsListGlobal walks every namespace's persisted index under the
// root directory and aggregates keyword usage across all of them, without
// opening (or caching) a store for any of them.
func (e *Engine) KeywordsListGlobal() (ToolResult, error) {
	scanned, entries := collectGlobalKeywordStats(e.rootDir)
	total := len(entries)

	var text string
	if total == 0 {
		text = "global: no keywords yet."
	} else {
		text = fmt.Sprintf("global: %d keywords across %d namespaces.", total, scanned)
	}

	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		Data: map[string]interface{}{
			"total":              total,
			"scanned_namespaces": scanned,
			"keywords":           entries,
		},
	}, nil
}

func (e *Engine) getOrOpenNamespace(raw string) (*store.NamespaceStore, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &memerr.EmptyFieldError{Field: "namespace"}
	}

	paths, err := namespace.Resolve(e.rootDir, trimmed)
	if err != nil {
		return nil, err
	}

	if st, ok := e.namespaces[paths.Namespace]; ok {
		return st, nil
	}

	st, err := store.Open(paths)
	if err != nil {
		return nil, err
	}
	e.namespaces[paths.Namespace] = st
	return st, nil
}

// collectGlobalKeywordStats depth-first walks rootDir reading every
// index.json it finds, skipping anything unreadable, unparseable, or on
// an index schema version this build doesn't recognize.
func collectGlobalKeywordStats(rootDir string) (int, []GlobalKeywordEntry) {
	if _, err := os.Stat(rootDir); err != nil {
		return 0, []GlobalKeywordEntry{}
	}

	scanned := 0
	nsCounts := make(map[string]int)
	itemCounts := make(map[string]int)

	_ = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "index.json" {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		var idx index.Data
		if jsonErr := json.Unmarshal(data, &idx); jsonErr != nil {
			return nil
		}
		if idx.Version != index.Version {
			return nil
		}

		scanned++
		for kw, postings := range idx.KeywordPostings {
			norm := strings.ToLower(strings.TrimSpace(kw))
			if norm == "" || keyword.IsTimeLike(norm) {
				continue
			}
			nsCounts[norm]++
			itemCounts[norm] += len(postings)
		}
		return nil
	})

	entries := make([]GlobalKeywordEntry, 0, len(nsCounts))
	for kw, nsCount := range nsCounts {
		entries = append(entries, GlobalKeywordEntry{Keyword: kw, Namespaces: nsCount, Items: itemCounts[kw]})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		li, lj := len([]rune(a.Keyword)), len([]rune(b.Keyword))
		if li != lj {
			return li < lj
		}
		if a.Namespaces != b.Namespaces {
			return a.Namespaces > b.Namespaces
		}
		return a.Keyword < b.Keyword
	})

	return scanned, entries
}

func formatOffset(seconds int) string {
	sign := "+"
	abs := seconds
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	hours := abs / 3600
	minutes := (abs % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, hours, minutes)
}
