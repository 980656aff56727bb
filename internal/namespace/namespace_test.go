package namespace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCanonicalForm(t *testing.T) {
	p, err := Resolve("/root", "u1/p1")
	require.NoError(t, err)
	require.Equal(t, "u1/p1", p.Namespace)
	require.Equal(t, filepath.Join("/root", "u1", "p1"), p.Dir)
	require.Equal(t, filepath.Join("/root", "u1", "p1", "memories.jsonl"), p.MemoriesPath)
	require.Equal(t, filepath.Join("/root", "u1", "p1", "index.json"), p.IndexPath)
}

func TestResolveNormalizesBackslashes(t *testing.T) {
	p, err := Resolve("/root", `u1\p1`)
	require.NoError(t, err)
	require.Equal(t, "u1/p1", p.Namespace)
}

func TestResolveDropsDotSegments(t *testing.T) {
	p, err := Resolve("/root", "./u1/../p1/.")
	require.NoError(t, err)
	require.Equal(t, "u1/p1", p.Namespace)
}

func TestResolveSanitizesIllegalCharacters(t *testing.T) {
	p, err := Resolve("/root", "u:1/p*1")
	require.NoError(t, err)
	require.Equal(t, "u_1/p_1", p.Namespace)
}

func TestResolveTrimsTrailingSpacesAndDots(t *testing.T) {
	p, err := Resolve("/root", "u1. /p1 .")
	require.NoError(t, err)
	require.Equal(t, "u1/p1", p.Namespace)
}

func TestResolveRejectsWrongSegmentCount(t *testing.T) {
	_, err := Resolve("/root", "u1")
	require.Error(t, err)

	_, err = Resolve("/root", "u1/p1/extra")
	require.Error(t, err)
}

func TestResolveRejectsEmpty(t *testing.T) {
	_, err := Resolve("/root", "   ")
	require.Error(t, err)
}
