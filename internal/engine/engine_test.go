package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirino/agent-memory/internal/model"
)

func TestNowReturnsTimeFields(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Now()
	require.NoError(t, err)
	require.Contains(t, result.Data, "utc_rfc3339")
	require.Contains(t, result.Data, "local_rfc3339")
	require.NotEmpty(t, result.Content)
}

func TestRememberThenRecallRoundTrip(t *testing.T) {
	e := New(t.TempDir())

	remembered, err := e.Remember(model.RememberArgs{
		Namespace: "u1/p1",
		Keywords:  []string{"alpha"},
		Slice:     "slice text",
		Diary:     "diary text",
	})
	require.NoError(t, err)
	require.Contains(t, remembered.Data, "id")

	recalled, err := e.Recall(model.RecallArgs{
		Namespace: "u1/p1",
		Keywords:  []string{"alpha"},
		Limit:     20,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, recalled.Data["total"])
}

func TestGetOrOpenNamespaceReusesStore(t *testing.T) {
	e := New(t.TempDir())
	_, err := e.Remember(model.RememberArgs{Namespace: "u1/p1", Keywords: []string{"a"}, Slice: "s", Diary: "d"})
	require.NoError(t, err)

	first, err := e.getOrOpenNamespace("u1/p1")
	require.NoError(t, err)
	second, err := e.getOrOpenNamespace("u1/p1")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestKeywordsListEmptyNamespace(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.KeywordsList("u1/p1")
	require.NoError(t, err)
	require.EqualValues(t, 0, result.Data["total"])
}

func TestKeywordsListGlobalAggregatesAcrossNamespaces(t *testing.T) {
	e := New(t.TempDir())
	_, err := e.Remember(model.RememberArgs{Namespace: "u1/p1", Keywords: []string{"erp", "项目"}, Slice: "s", Diary: "d"})
	require.NoError(t, err)
	_, err = e.Remember(model.RememberArgs{Namespace: "u2/p2", Keywords: []string{"erp"}, Slice: "s", Diary: "d"})
	require.NoError(t, err)

	result, err := e.KeywordsListGlobal()
	require.NoError(t, err)
	entries := result.Data["keywords"].([]GlobalKeywordEntry)
	require.Len(t, entries, 2)
	require.Equal(t, "项目", entries[0].Keyword, "shorter (2 runes) sorts before erp (3 runes)")
	require.Equal(t, "erp", entries[1].Keyword)
	require.Equal(t, 2, entries[1].Namespaces)
}

func TestFormatOffset(t *testing.T) {
	require.Equal(t, "+08:00", formatOffset(8*3600))
	require.Equal(t, "-05:30", formatOffset(-(5*3600+30*60)))
	require.Equal(t, "+00:00", formatOffset(0))
}
