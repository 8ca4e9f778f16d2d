package mrutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestMergeSortedFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeLines(t, dir, "a", []string{"apple\t1", "cherry\t1"})
	b := writeLines(t, dir, "b", []string{"banana\t1", "date\t1"})

	var buf bytes.Buffer
	require.NoError(t, MergeSortedFiles([]string{a, b}, &buf))

	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{"apple\t1", "banana\t1", "cherry\t1", "date\t1"}
	require.Equal(t, want, got)
}

func TestSortFileLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "unsorted", []string{"zebra", "apple", "mango"})

	require.NoError(t, SortFileLines(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Equal(t, []string{"apple", "mango", "zebra"}, got)
}
