package csvsink_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"quotelog/internal/csvsink"
)

var header = []string{"datetime", "usd_twd", "aapl"}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]csvsink.Mode{
		"overwrite":                     csvsink.Overwrite,
		"append":                        csvsink.Append,
		"append-with-header-if-missing": csvsink.Append,
		" Append-If-Changed ":           csvsink.AppendIfChanged,
	} {
		got, err := csvsink.ParseMode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := csvsink.ParseMode("upsert")
	require.ErrorContains(t, err, "upsert")
	require.ErrorContains(t, err, "append-if-changed")
}

func TestWrite_Overwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))
	s := csvsink.Sink{Path: path, Mode: csvsink.Overwrite}

	written, err := s.Write(header, []string{"2024-01-01T00:00:00.000+00:00", "31.5", "150.2"})
	require.NoError(t, err)
	require.True(t, written)
	require.Equal(t, "datetime,usd_twd,aapl\n2024-01-01T00:00:00.000+00:00,31.5,150.2\n", readFile(t, path))
}

func TestWrite_AppendAddsHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s := csvsink.Sink{Path: path, Mode: csvsink.Append}

	_, err := s.Write(header, []string{"t1", "31.5", "150.2"})
	require.NoError(t, err)
	_, err = s.Write(header, []string{"t2", "31.5", "150.2"})
	require.NoError(t, err)

	require.Equal(t, "datetime,usd_twd,aapl\nt1,31.5,150.2\nt2,31.5,150.2\n", readFile(t, path))
}

func TestWrite_AppendIfChangedIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s := csvsink.Sink{Path: path, Mode: csvsink.AppendIfChanged}

	written, err := s.Write(header, []string{"t1", "31.5", "150.2"})
	require.NoError(t, err)
	require.True(t, written)

	// Same values, later timestamp.
	written, err = s.Write(header, []string{"t2", "31.5", "150.2"})
	require.NoError(t, err)
	require.False(t, written)

	written, err = s.Write(header, []string{"t3", "31.6", "150.2"})
	require.NoError(t, err)
	require.True(t, written)

	require.Equal(t, "datetime,usd_twd,aapl\nt1,31.5,150.2\nt3,31.6,150.2\n", readFile(t, path))
}

func TestWrite_HeaderChangeRewrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("datetime,usd_twd\nt0,31.0"), 0o644))
	s := csvsink.Sink{Path: path, Mode: csvsink.Append}

	_, err := s.Write(header, []string{"t1", "31.5", "150.2"})
	require.NoError(t, err)
	require.Equal(t, "datetime,usd_twd,aapl\nt1,31.5,150.2\n", readFile(t, path))
}

func TestWrite_AppendRepairsMissingNewline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("datetime,usd_twd,aapl\nt0,31.0,149.9"), 0o644))
	s := csvsink.Sink{Path: path, Mode: csvsink.Append}

	_, err := s.Write(header, []string{"t1", "31.5", "150.2"})
	require.NoError(t, err)
	require.Equal(t, "datetime,usd_twd,aapl\nt0,31.0,149.9\nt1,31.5,150.2\n", readFile(t, path))
}

func TestWrite_LengthMismatchLeavesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	const before = "datetime,usd_twd,aapl\nt0,31.0,149.9\n"
	require.NoError(t, os.WriteFile(path, []byte(before), 0o644))
	s := csvsink.Sink{Path: path, Mode: csvsink.Overwrite}

	written, err := s.Write(header, []string{"t1", "31.5"})
	require.Error(t, err)
	require.False(t, written)
	require.Equal(t, before, readFile(t, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWrite_UnparsableFileIsKept(t *testing.T) {
	t.Parallel()

	for _, mode := range []csvsink.Mode{csvsink.Append, csvsink.AppendIfChanged} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "out.csv")
			const before = "datetime,aapl\n2024-01-01T00:00:00.000+00:00,150.2\n2024-01-02T00:00:00.000+00:00,15\"1.0\n"
			require.NoError(t, os.WriteFile(path, []byte(before), 0o644))
			s := csvsink.Sink{Path: path, Mode: mode}

			written, err := s.Write([]string{"datetime", "aapl"}, []string{"2024-01-03T00:00:00.000+00:00", "152.0"})
			require.ErrorIs(t, err, csv.ErrBareQuote)
			require.ErrorContains(t, err, path)
			require.False(t, written)
			require.Equal(t, before, readFile(t, path))
		})
	}
}
