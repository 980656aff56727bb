package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chirino/agent-memory/internal/memerr"
	"github.com/chirino/agent-memory/internal/model"
	"github.com/chirino/agent-memory/internal/namespace"
)

func openTestStore(t *testing.T) *NamespaceStore {
	t.Helper()
	paths, err := namespace.Resolve(t.TempDir(), "u1/p1")
	require.NoError(t, err)
	st, err := Open(paths)
	require.NoError(t, err)
	return st
}

func TestAppendMemoryRejectsEmptyKeywordsAfterNormalization(t *testing.T) {
	st := openTestStore(t)
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1",
		Keywords:  []string{"2025-01-02"},
		Slice:     "s",
		Diary:     "d",
	})
	require.Error(t, err)
	require.IsType(t, &memerr.EmptyKeywordsError{}, err)
}

func TestAppendMemoryRejectsBadImportance(t *testing.T) {
	st := openTestStore(t)
	bad := 6
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace:  "u1/p1",
		Keywords:   []string{"alpha"},
		Slice:      "s",
		Diary:      "d",
		Importance: &bad,
	})
	require.Error(t, err)
	require.IsType(t, &memerr.InvalidImportanceError{}, err)
}

func TestAppendMemoryThenRecallByKeyword(t *testing.T) {
	st := openTestStore(t)
	recorded, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1",
		Keywords:  []string{"Project", "erp"},
		Slice:     "we shipped the erp project",
		Diary:     "long form diary entry",
	})
	require.NoError(t, err)
	require.NotEmpty(t, recorded.ID)
	require.Equal(t, []string{"project", "erp"}, recorded.Keywords)

	result, err := st.Recall(model.RecallArgs{
		Namespace: "u1/p1",
		Keywords:  []string{"erp"},
		Limit:     20,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	require.Equal(t, recorded.ID, result.Items[0].ID)
	require.NotNil(t, result.Items[0].MatchedKeywords)
	require.Equal(t, []string{"erp"}, *result.Items[0].MatchedKeywords)
}

func TestRecallWithoutKeywordsIsMostRecentFirst(t *testing.T) {
	st := openTestStore(t)
	first, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"a"}, Slice: "first", Diary: "d",
		OccurredAt: "2024-01-01",
	})
	require.NoError(t, err)
	second, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"b"}, Slice: "second", Diary: "d",
		OccurredAt: "2024-06-01",
	})
	require.NoError(t, err)

	result, err := st.Recall(model.RecallArgs{Namespace: "u1/p1", Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, second.ID, result.Items[0].ID)
	require.Equal(t, first.ID, result.Items[1].ID)
	require.Nil(t, result.Items[0].MatchedKeywords)
}

func TestRecallFreeTextQueryMatchesSliceAndDiary(t *testing.T) {
	st := openTestStore(t)
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"a"}, Slice: "alpha summary", Diary: "needle in the diary",
	})
	require.NoError(t, err)

	result, err := st.Recall(model.RecallArgs{Namespace: "u1/p1", Query: "needle", Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
}

func TestRecallQueryTimeRangeFiltersOut(t *testing.T) {
	st := openTestStore(t)
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"a"}, Slice: "s", Diary: "d",
		OccurredAt: "2024-01-01",
	})
	require.NoError(t, err)

	result, err := st.Recall(model.RecallArgs{Namespace: "u1/p1", Query: "time>=2025-01-01", Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 0, result.Total)
}

func TestRecallIncludeDiary(t *testing.T) {
	st := openTestStore(t)
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"a"}, Slice: "s", Diary: "full diary text",
	})
	require.NoError(t, err)

	withDiary, err := st.Recall(model.RecallArgs{Namespace: "u1/p1", Limit: 20, IncludeDiary: true})
	require.NoError(t, err)
	require.NotNil(t, withDiary.Items[0].Diary)
	require.Equal(t, "full diary text", *withDiary.Items[0].Diary)

	withoutDiary, err := st.Recall(model.RecallArgs{Namespace: "u1/p1", Limit: 20, IncludeDiary: false})
	require.NoError(t, err)
	require.Nil(t, withoutDiary.Items[0].Diary)
}

func TestListKeywordsOrdersByLengthThenAlpha(t *testing.T) {
	st := openTestStore(t)
	_, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"项目", "erp"}, Slice: "s", Diary: "d",
	})
	require.NoError(t, err)

	keywords, err := st.ListKeywords()
	require.NoError(t, err)
	require.Equal(t, []string{"项目", "erp"}, keywords)
}

func TestReopenRecoversFromLogWithoutIndex(t *testing.T) {
	root := t.TempDir()
	paths, err := namespace.Resolve(root, "u1/p1")
	require.NoError(t, err)

	st, err := Open(paths)
	require.NoError(t, err)
	recorded, err := st.AppendMemory(model.RememberArgs{
		Namespace: "u1/p1", Keywords: []string{"alpha"}, Slice: "s", Diary: "d",
	})
	require.NoError(t, err)

	require.NoError(t, os.Remove(paths.IndexPath))

	reopened, err := Open(paths)
	require.NoError(t, err)
	keywords, err := reopened.ListKeywords()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, keywords)

	result, err := reopened.Recall(model.RecallArgs{Namespace: "u1/p1", Keywords: []string{"alpha"}, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, recorded.ID, result.Items[0].ID)
}
