// Package store implements the per-namespace append-only log plus its
// persisted inverted/time index, incremental crash recovery, and the
// recall query engine (keyword postings, time-range filtering, the
// embedded time mini-language, and free-text substring matching).
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/chirino/agent-memory/internal/index"
	"github.com/chirino/agent-memory/internal/keyword"
	"github.com/chirino/agent-memory/internal/memerr"
	"github.com/chirino/agent-memory/internal/memtime"
	"github.com/chirino/agent-memory/internal/model"
	"github.com/chirino/agent-memory/internal/namespace"
	"github.com/chirino/agent-memory/internal/tempfiles"
)

// NamespaceStore is the open, stateful handle on one namespace's log and
// index. It is not safe for concurrent use; callers serialize access
// (the stdio dispatcher does this naturally).
type NamespaceStore struct {
	paths namespace.Paths
	index *index.Data
}

// Open creates the namespace directory and log file if missing and loads
// (or initializes) its index. It does not itself run a recovery pass;
// each operation calls syncIndex before touching the index.
func Open(paths namespace.Paths) (*NamespaceStore, error) {
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create namespace dir: %w", err)
	}

	if _, err := os.Stat(paths.MemoriesPath); os.IsNotExist(err) {
		f, createErr := os.Create(paths.MemoriesPath)
		if createErr != nil {
			return nil, fmt.Errorf("create memories.jsonl: %w", createErr)
		}
		f.Close()
	} else if err != nil {
		return nil, fmt.Errorf("stat memories.jsonl: %w", err)
	}

	idx, err := loadOrCreateIndex(paths)
	if err != nil {
		return nil, err
	}

	log.Info("namespace store opened", "namespace", paths.Namespace)

	return &NamespaceStore{paths: paths, index: idx}, nil
}

// Namespace returns the canonical namespace string this store backs.
func (s *NamespaceStore) Namespace() string {
	return s.paths.Namespace
}

// ListKeywords returns every keyword present in this namespace's postings,
// sorted by (character length asc, keyword asc) after an incremental sync.
func (s *NamespaceStore) ListKeywords() ([]string, error) {
	if err := s.syncIndex(); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(s.index.KeywordPostings))
	for kw := range s.index.KeywordPostings {
		keywords = append(keywords, kw)
	}
	sortByLengthThenAlpha(keywords)
	return keywords, nil
}

// AppendMemory validates, normalizes, and appends one record, updating
// and persisting the index.
func (s *NamespaceStore) AppendMemory(args model.RememberArgs) (model.RememberRecorded, error) {
	if args.Importance != nil && (*args.Importance < 1 || *args.Importance > 5) {
		return model.RememberRecorded{}, &memerr.InvalidImportanceError{Value: *args.Importance}
	}

	if err := s.syncIndex(); err != nil {
		return model.RememberRecorded{}, err
	}

	recordedAt, recordedAtTS := memtime.NowUTC()

	var occurredAt *string
	var occurredAtTS *int64
	if args.OccurredAt != "" {
		ts, canonical, err := memtime.Parse(args.OccurredAt, memtime.Start)
		if err != nil {
			return model.RememberRecorded{}, err
		}
		occurredAt = &canonical
		occurredAtTS = &ts
	}

	keywords := keyword.Normalize(args.Keywords)
	if len(keywords) == 0 {
		return model.RememberRecorded{}, &memerr.EmptyKeywordsError{}
	}

	id := uuid.NewString()
	var source *string
	if args.Source != "" {
		source = &args.Source
	}

	record := model.Record{
		ID:         id,
		Namespace:  s.paths.Namespace,
		RecordedAt: recordedAt,
		OccurredAt: occurredAt,
		Keywords:   keywords,
		Slice:      args.Slice,
		Diary:      args.Diary,
		Importance: args.Importance,
		Source:     source,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return model.RememberRecorded{}, fmt.Errorf("serialize memory record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.paths.MemoriesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return model.RememberRecorded{}, fmt.Errorf("open memories.jsonl: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return model.RememberRecorded{}, fmt.Errorf("stat memories.jsonl: %w", err)
	}
	offset := stat.Size()

	if _, err := f.Write(line); err != nil {
		return model.RememberRecorded{}, fmt.Errorf("append memories.jsonl: %w", err)
	}
	if err := f.Sync(); err != nil {
		return model.RememberRecorded{}, fmt.Errorf("flush memories.jsonl: %w", err)
	}

	length := len(line)
	s.index.AddItem(id, offset, length, recordedAtTS, occurredAtTS, args.Importance, keywords)
	s.index.IndexedUpToOffset = offset + int64(length)

	if err := s.saveIndex(); err != nil {
		return model.RememberRecorded{}, err
	}

	return model.RememberRecorded{
		ID:         id,
		RecordedAt: recordedAt,
		OccurredAt: occurredAt,
		Keywords:   keywords,
	}, nil
}

// Recall runs the keyword/time/query recall algorithm described in the
// index's keyword_postings and time_sorted structures.
func (s *NamespaceStore) Recall(args model.RecallArgs) (model.RecallResult, error) {
	if err := s.syncIndex(); err != nil {
		return model.RecallResult{}, err
	}
	s.index.EnsureTimeSorted()

	keywords := keyword.Normalize(args.Keywords)
	var keywordSet map[string]struct{}
	if len(keywords) > 0 {
		keywordSet = make(map[string]struct{}, len(keywords))
		for _, kw := range keywords {
			keywordSet[kw] = struct{}{}
		}
	}

	queryText, queryStartTS, queryEndTS := parseQueryTimeExpr(args.Query)

	var startTS, endTS *int64
	if args.Start != "" {
		ts, _, err := memtime.Parse(args.Start, memtime.Start)
		if err != nil {
			return model.RecallResult{}, err
		}
		startTS = &ts
	}
	if args.End != "" {
		ts, _, err := memtime.Parse(args.End, memtime.End)
		if err != nil {
			return model.RecallResult{}, err
		}
		endTS = &ts
	}

	startTS = maxOptI64(startTS, queryStartTS)
	endTS = minOptI64(endTS, queryEndTS)

	if startTS != nil && endTS != nil && *startTS > *endTS {
		return model.RecallResult{Total: 0, Items: []model.RecallItem{}}, nil
	}

	results := make([]model.RecallItem, 0)

	if len(keywords) == 0 {
		for _, idx := range s.timeCandidates(startTS, endTS) {
			if len(results) >= args.Limit {
				break
			}
			item, err := s.tryLoadItemForRecall(idx, nil, queryText, args.IncludeDiary)
			if err != nil {
				return model.RecallResult{}, err
			}
			if item != nil {
				results = append(results, *item)
			}
		}
	} else {
		type scoredHit struct {
			idx        int
			hits       int
			ts         int64
			importance int
		}

		counts := make(map[int]int)
		for _, kw := range keywords {
			for _, idx := range s.index.KeywordPostings[kw] {
				counts[idx]++
			}
		}

		scored := make([]scoredHit, 0, len(counts))
		for idx, hits := range counts {
			item := s.index.Items[idx]
			ts := item.TimeKeyTS()
			if !inTimeRange(ts, startTS, endTS) {
				continue
			}
			importance := 0
			if item.Importance != nil {
				importance = *item.Importance
			}
			scored = append(scored, scoredHit{idx: idx, hits: hits, ts: ts, importance: importance})
		}

		sort.SliceStable(scored, func(i, j int) bool {
			a, b := scored[i], scored[j]
			if a.hits != b.hits {
				return a.hits > b.hits
			}
			if a.importance != b.importance {
				return a.importance > b.importance
			}
			return a.ts > b.ts
		})

		for _, sc := range scored {
			if len(results) >= args.Limit {
				break
			}
			item, err := s.tryLoadItemForRecall(sc.idx, keywordSet, queryText, args.IncludeDiary)
			if err != nil {
				return model.RecallResult{}, err
			}
			if item != nil {
				results = append(results, *item)
			}
		}
	}

	return model.RecallResult{Total: len(results), Items: results}, nil
}

// timeCandidates returns item positions in descending time order (most
// recent first), optionally filtered to a [start, end] range. With no
// range given it is simply the persisted ascending ordering reversed.
func (s *NamespaceStore) timeCandidates(start, end *int64) []int {
	var out []int
	if start == nil && end == nil {
		out = append(out, s.index.TimeSorted...)
	} else {
		for _, idx := range s.index.TimeSorted {
			if idx < 0 || idx >= len(s.index.Items) {
				continue
			}
			if inTimeRange(s.index.Items[idx].TimeKeyTS(), start, end) {
				out = append(out, idx)
			}
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *NamespaceStore) tryLoadItemForRecall(idx int, keywordSet map[string]struct{}, query string, includeDiary bool) (*model.RecallItem, error) {
	rec, err := s.loadRecordByIndex(idx)
	if err != nil {
		return nil, err
	}

	if query != "" {
		source := ""
		if rec.Source != nil {
			source = *rec.Source
		}
		hay := strings.ToLower(rec.Slice) + "\n" + strings.ToLower(rec.Diary) + "\n" + strings.ToLower(source)
		if !strings.Contains(hay, query) {
			return nil, nil
		}
	}

	var matched *[]string
	if keywordSet != nil {
		m := make([]string, 0, len(rec.Keywords))
		for _, kw := range rec.Keywords {
			if _, ok := keywordSet[kw]; ok {
				m = append(m, kw)
			}
		}
		sortByLengthThenAlpha(m)
		matched = &m
	}

	var diary *string
	if includeDiary {
		d := rec.Diary
		diary = &d
	}

	return &model.RecallItem{
		ID:              rec.ID,
		RecordedAt:      rec.RecordedAt,
		OccurredAt:      rec.OccurredAt,
		Keywords:        rec.Keywords,
		MatchedKeywords: matched,
		Slice:           rec.Slice,
		Diary:           diary,
		Importance:      rec.Importance,
		Source:          rec.Source,
	}, nil
}

func (s *NamespaceStore) loadRecordByIndex(idx int) (model.Record, error) {
	if idx < 0 || idx >= len(s.index.Items) {
		return model.Record{}, fmt.Errorf("index position out of range: %d", idx)
	}
	entry := s.index.Items[idx]

	f, err := os.Open(s.paths.MemoriesPath)
	if err != nil {
		return model.Record{}, fmt.Errorf("open memories.jsonl: %w", err)
	}
	defer f.Close()

	buf := make([]byte, entry.Length)
	if _, err := f.ReadAt(buf, entry.Offset); err != nil {
		return model.Record{}, fmt.Errorf("read memories.jsonl: %w", err)
	}

	line := bytes.TrimRight(buf, "\r\n")

	var rec model.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return model.Record{}, fmt.Errorf("parse memory record: %w", err)
	}
	return rec, nil
}

// syncIndex incrementally reconciles the index to the log: it rebuilds
// from scratch if the log shrank underneath it (a prior truncation), is a
// no-op if the log hasn't grown, and otherwise reads and indexes only the
// newly appended bytes.
func (s *NamespaceStore) syncIndex() error {
	info, err := os.Stat(s.paths.MemoriesPath)
	if err != nil {
		return fmt.Errorf("stat memories.jsonl: %w", err)
	}
	fileLen := info.Size()

	if fileLen < s.index.IndexedUpToOffset {
		log.Warn("memories.jsonl shrank since last index, rebuilding", "namespace", s.paths.Namespace)
		s.index = index.New(s.paths.Namespace)
	}

	if fileLen == s.index.IndexedUpToOffset {
		return nil
	}

	if err := s.incrementalIndex(); err != nil {
		return err
	}
	return s.saveIndex()
}

func (s *NamespaceStore) incrementalIndex() error {
	f, err := os.Open(s.paths.MemoriesPath)
	if err != nil {
		return fmt.Errorf("open memories.jsonl: %w", err)
	}
	defer f.Close()

	offset := s.index.IndexedUpToOffset
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek memories.jsonl: %w", err)
	}

	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadBytes('\n')

		if len(line) > 0 {
			length := len(line)
			trimmed := bytes.TrimRight(line, "\r\n")

			var rec model.Record
			if jsonErr := json.Unmarshal(trimmed, &rec); jsonErr == nil {
				recordedTS, _, parseErr := memtime.Parse(rec.RecordedAt, memtime.Start)
				if parseErr != nil {
					recordedTS = 0
				}

				var occurredTS *int64
				if rec.OccurredAt != nil {
					if ts, _, perr := memtime.Parse(*rec.OccurredAt, memtime.Start); perr == nil {
						occurredTS = &ts
					}
				}

				keywords := keyword.Normalize(rec.Keywords)
				s.index.AddItem(rec.ID, offset, length, recordedTS, occurredTS, rec.Importance, keywords)
			} else {
				log.Debug("skipping unparseable memory log line", "namespace", s.paths.Namespace, "offset", offset, "err", jsonErr)
			}

			offset += int64(length)
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("read memories.jsonl: %w", readErr)
		}
		if len(line) == 0 {
			break
		}
	}

	s.index.IndexedUpToOffset = offset
	return nil
}

func loadOrCreateIndex(paths namespace.Paths) (*index.Data, error) {
	if _, err := os.Stat(paths.IndexPath); os.IsNotExist(err) {
		idx := index.New(paths.Namespace)
		if err := saveIndexFile(paths, idx); err != nil {
			return nil, err
		}
		return idx, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat index.json: %w", err)
	}

	data, err := os.ReadFile(paths.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("read index.json: %w", err)
	}

	var idx index.Data
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &memerr.IndexCorruptError{Path: paths.IndexPath, Err: err}
	}

	if idx.Version != index.Version {
		log.Warn("index version mismatch, rebuilding", "namespace", paths.Namespace)
		fresh := index.New(paths.Namespace)
		if err := saveIndexFile(paths, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	if idx.Namespace != paths.Namespace {
		idx.Namespace = paths.Namespace
		if err := saveIndexFile(paths, &idx); err != nil {
			return nil, err
		}
	}

	return &idx, nil
}

func (s *NamespaceStore) saveIndex() error {
	return saveIndexFile(s.paths, s.index)
}

// saveIndexFile writes the index atomically: encode to a sibling temp
// file (created alongside index.json via tempfiles.Create so a crash
// mid-write never corrupts the real index), then rename over the real
// path. Rename can fail to replace an existing file on some platforms;
// retry once after removing the target.
func saveIndexFile(paths namespace.Paths, idx *index.Data) error {
	encoded, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize index.json: %w", err)
	}

	tmp, err := tempfiles.Create(paths.Dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create index tmp: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(encoded)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write index tmp: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index tmp: %w", closeErr)
	}

	if err := os.Rename(tmpPath, paths.IndexPath); err != nil {
		log.Debug("index rename failed, retrying", "namespace", paths.Namespace, "err", err)
		_ = os.Remove(paths.IndexPath)
		if err2 := os.Rename(tmpPath, paths.IndexPath); err2 != nil {
			return fmt.Errorf("replace index.json: %w", err)
		}
	}

	return nil
}

// parseQueryTimeExpr extracts time>=/time<=/time= tokens from a recall
// query, folding them into a start/end timestamp range, and returns the
// remaining free text (lowercased) for substring matching.
func parseQueryTimeExpr(query string) (string, *int64, *int64) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", nil, nil
	}

	var startTS, endTS *int64
	var textTokens []string

	for _, token := range strings.Fields(q) {
		if v, ok := cutPrefixCI(token, "time>="); ok {
			if ts, _, err := memtime.Parse(v, memtime.Start); err == nil {
				startTS = maxOptI64(startTS, ptr(ts))
				continue
			}
		}
		if v, ok := cutPrefixCI(token, "time<="); ok {
			if ts, _, err := memtime.Parse(v, memtime.End); err == nil {
				endTS = minOptI64(endTS, ptr(ts))
				continue
			}
		}
		if v, ok := cutPrefixCI(token, "time="); ok {
			if matched, a, b := parseTimeEqExpr(v); matched {
				startTS = maxOptI64(startTS, ptr(a))
				endTS = minOptI64(endTS, ptr(b))
				continue
			}
		}
		textTokens = append(textTokens, token)
	}

	text := strings.ToLower(strings.TrimSpace(strings.Join(textTokens, " ")))
	return text, startTS, endTS
}

// parseTimeEqExpr handles both "time=A..B" (range) and "time=V" (bare
// date widens to the whole day, an RFC3339 instant collapses to equality).
func parseTimeEqExpr(v string) (bool, int64, int64) {
	if a, b, found := strings.Cut(v, ".."); found {
		aTS, _, aErr := memtime.Parse(a, memtime.Start)
		if aErr != nil {
			return false, 0, 0
		}
		bTS, _, bErr := memtime.Parse(b, memtime.End)
		if bErr != nil {
			return false, 0, 0
		}
		return true, aTS, bTS
	}

	aTS, _, aErr := memtime.Parse(v, memtime.Start)
	if aErr != nil {
		return false, 0, 0
	}
	bTS, _, bErr := memtime.Parse(v, memtime.End)
	if bErr != nil {
		return false, 0, 0
	}
	return true, aTS, bTS
}

func cutPrefixCI(token, prefix string) (string, bool) {
	if len(token) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(token[:len(prefix)], prefix) {
		return "", false
	}
	return token[len(prefix):], true
}

func inTimeRange(ts int64, start, end *int64) bool {
	if start != nil && ts < *start {
		return false
	}
	if end != nil && ts > *end {
		return false
	}
	return true
}

func maxOptI64(a, b *int64) *int64 {
	switch {
	case a != nil && b != nil:
		if *a > *b {
			return a
		}
		return b
	case a != nil:
		return a
	default:
		return b
	}
}

func minOptI64(a, b *int64) *int64 {
	switch {
	case a != nil && b != nil:
		if *a < *b {
			return a
		}
		return b
	case a != nil:
		return a
	default:
		return b
	}
}

func ptr(v int64) *int64 { return &v }

func sortByLengthThenAlpha(items []string) {
	sort.Slice(items, func(i, j int) bool {
		ri, rj := len([]rune(items[i])), len([]rune(items[j]))
		if ri != rj {
			return ri < rj
		}
		return items[i] < items[j]
	})
}
