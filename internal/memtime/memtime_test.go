package memtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRFC3339Canonicalizes(t *testing.T) {
	ts, canon, err := Parse("2025-01-02T03:04:05+08:00", Start)
	require.NoError(t, err)
	require.Equal(t, "2025-01-01T19:04:05Z", canon)
	require.EqualValues(t, ts, 1735758245)
}

func TestParseBareDateStart(t *testing.T) {
	ts, canon, err := Parse("2025-01-02", Start)
	require.NoError(t, err)
	require.Equal(t, "2025-01-02", canon)
	require.EqualValues(t, ts, mustUnix(t, "2025-01-02T00:00:00Z"))
}

func TestParseBareDateEnd(t *testing.T) {
	ts, canon, err := Parse("2025-01-02", End)
	require.NoError(t, err)
	require.Equal(t, "2025-01-02", canon)
	require.EqualValues(t, ts, mustUnix(t, "2025-01-02T23:59:59Z"))
}

func TestParseCasePatchLowercaseT(t *testing.T) {
	_, canon, err := Parse("2025-01-02t03:04:05Z", Start)
	require.NoError(t, err)
	require.Equal(t, "2025-01-02T03:04:05Z", canon)
}

func TestParseCasePatchLowercaseZ(t *testing.T) {
	_, canon, err := Parse("2025-01-02T03:04:05z", Start)
	require.NoError(t, err)
	require.Equal(t, "2025-01-02T03:04:05Z", canon)
}

func TestParseEmptyIsInvalid(t *testing.T) {
	_, _, err := Parse("   ", Start)
	require.Error(t, err)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, _, err := Parse("not-a-time", Start)
	require.Error(t, err)
}

func TestNowUTCAndLocalAreConsistent(t *testing.T) {
	utcStr, utcTS := NowUTC()
	require.NotEmpty(t, utcStr)
	require.Greater(t, utcTS, int64(0))

	localStr, offset := NowLocal()
	require.NotEmpty(t, localStr)
	_ = offset
}

func mustUnix(t *testing.T, rfc3339 string) int64 {
	t.Helper()
	ts, _, err := Parse(rfc3339, Start)
	require.NoError(t, err)
	return ts
}
