package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script to dir/name and returns
// its path. Used in place of a real mapper/reducer sub-program.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestRunMapTaskPartitionsAndSortsOutput(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0755))
	outputDir := filepath.Join(root, "output")
	scratchBase := filepath.Join(root, "scratch")

	inputPath := filepath.Join(inputDir, "part-00000")
	require.NoError(t, os.WriteFile(inputPath, []byte("the quick brown fox\nthe lazy dog\n"), 0644))

	mapper := writeScript(t, root, "mapper.sh", `
while read -r line; do
  for word in $line; do
    printf '%s\t1\n' "$word"
  done
done
`)

	spec := MapTaskSpec{
		TaskID:          0,
		InputPaths:      []string{inputPath},
		Executable:      mapper,
		NumPartitions:   2,
		OutputDirectory: outputDir,
	}
	require.NoError(t, RunMapTask(spec, scratchBase, zerolog.Nop()))

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var allLines []string
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(outputDir, e.Name()))
		require.NoError(t, err)
		if len(data) == 0 {
			continue
		}
		lines := splitLines(string(data))
		for i := 1; i < len(lines); i++ {
			require.LessOrEqual(t, lines[i-1], lines[i], "partition file %s must be sorted", e.Name())
		}
		allLines = append(allLines, lines...)
	}
	require.Len(t, allLines, 7)
}

func TestRunMapTaskPropagatesExecutableFailure(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0755))
	inputPath := filepath.Join(inputDir, "part-00000")
	require.NoError(t, os.WriteFile(inputPath, []byte("line\n"), 0644))

	mapper := writeScript(t, root, "bad_mapper.sh", "exit 1\n")

	spec := MapTaskSpec{
		TaskID:          0,
		InputPaths:      []string{inputPath},
		Executable:      mapper,
		NumPartitions:   1,
		OutputDirectory: filepath.Join(root, "output"),
	}
	err := RunMapTask(spec, filepath.Join(root, "scratch"), zerolog.Nop())
	require.Error(t, err)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
