package rootdir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHonorsEnvOverride(t *testing.T) {
	t.Setenv(envVar, "/tmp/custom-store")
	require.Equal(t, "/tmp/custom-store", Resolve())
}

func TestResolveFallsBackWhenEnvBlank(t *testing.T) {
	t.Setenv(envVar, "   ")
	dir := Resolve()
	require.NotEmpty(t, dir)
}

func TestPlatformDataDirResolvesForCurrentOS(t *testing.T) {
	dir, ok := platformDataDir()
	if !ok {
		t.Skip("no platform data dir available in this environment")
	}
	require.NotEmpty(t, dir)
	require.Contains(t, dir, "agent-memory")
}
