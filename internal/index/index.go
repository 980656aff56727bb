// Package index defines the persisted per-namespace index: one IndexItem
// per log record, a keyword-to-item-position posting list, and a lazily
// maintained time-ascending ordering over item positions.
package index

import "sort"

// Version is the on-disk index schema version. A mismatch on load forces a
// full rebuild from the log.
const Version = 1

// DefaultMemoriesFile is the log file name new indices are stamped with.
const DefaultMemoriesFile = "memories.jsonl"

// Item is one entry in the index, mirroring one line of the log.
type Item struct {
	ID           string   `json:"id"`
	Offset       int64    `json:"offset"`
	Length       int      `json:"length"`
	RecordedAtTS int64    `json:"recorded_at_ts"`
	OccurredAtTS *int64   `json:"occurred_at_ts,omitempty"`
	Importance   *int     `json:"importance,omitempty"`
	Keywords     []string `json:"keywords"`
}

// TimeKeyTS returns the timestamp recall sorts and range-filters on:
// occurred_at when present, otherwise recorded_at.
func (it Item) TimeKeyTS() int64 {
	if it.OccurredAtTS != nil {
		return *it.OccurredAtTS
	}
	return it.RecordedAtTS
}

// Data is the full persisted index for one namespace.
type Data struct {
	Version           int              `json:"version"`
	Namespace         string           `json:"namespace"`
	MemoriesFile      string           `json:"memories_file"`
	IndexedUpToOffset int64            `json:"indexed_up_to_offset"`
	Items             []Item           `json:"items"`
	KeywordPostings   map[string][]int `json:"keyword_postings"`
	TimeSorted        []int            `json:"time_sorted"`
	TimeSortedDirty   bool             `json:"time_sorted_dirty"`
}

// New returns a freshly initialized, empty index for namespace.
func New(namespace string) *Data {
	return &Data{
		Version:         Version,
		Namespace:       namespace,
		MemoriesFile:    DefaultMemoriesFile,
		KeywordPostings: make(map[string][]int),
	}
}

// AddItem appends one record's index entry, updates its keyword postings,
// and marks the time ordering dirty.
func (d *Data) AddItem(id string, offset int64, length int, recordedAtTS int64, occurredAtTS *int64, importance *int, keywords []string) {
	idx := len(d.Items)

	d.Items = append(d.Items, Item{
		ID:           id,
		Offset:       offset,
		Length:       length,
		RecordedAtTS: recordedAtTS,
		OccurredAtTS: occurredAtTS,
		Importance:   importance,
		Keywords:     keywords,
	})

	if d.KeywordPostings == nil {
		d.KeywordPostings = make(map[string][]int)
	}
	for _, kw := range keywords {
		d.KeywordPostings[kw] = append(d.KeywordPostings[kw], idx)
	}

	d.TimeSorted = append(d.TimeSorted, idx)
	d.TimeSortedDirty = true
}

// EnsureTimeSorted resolves a pending lazy sort, ordering item positions by
// ascending TimeKeyTS. A no-op when nothing has changed since the last call.
func (d *Data) EnsureTimeSorted() {
	if !d.TimeSortedDirty {
		return
	}

	sort.SliceStable(d.TimeSorted, func(i, j int) bool {
		return d.timeKeyAt(d.TimeSorted[i]) < d.timeKeyAt(d.TimeSorted[j])
	})
	d.TimeSortedDirty = false
}

func (d *Data) timeKeyAt(idx int) int64 {
	if idx < 0 || idx >= len(d.Items) {
		return 0
	}
	return d.Items[idx].TimeKeyTS()
}
