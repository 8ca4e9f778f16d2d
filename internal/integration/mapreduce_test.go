// Package integration drives a Manager and its Workers over the real
// TCP/UDP control-plane surface, the way the teacher's own test_test.go
// exercises Distributed end to end rather than through isolated
// helpers.
package integration

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicklee/mapreduce/internal/manager"
	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/alicklee/mapreduce/internal/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// portBase derives a control-plane port range from this test binary's
// pid, following the teacher's own trick of keying test resource names
// off os.Getpid() (see test_test.go's workerFlag) to keep concurrent
// test runs from colliding on the same address.
func portBase(offset int) int {
	return 21000 + offset + (os.Getpid() % 4000)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

const wordCountMapper = `
while IFS= read -r line; do
  for word in $line; do
    printf '%s\t1\n' "$word"
  done
done
`

const wordCountReducer = `
key=""
count=0
while IFS=$(printf '\t') read -r k v; do
  if [ "$k" != "$key" ] && [ -n "$key" ]; then
    printf '%s\t%d\n' "$key" "$count"
    count=0
  fi
  key="$k"
  count=$((count + v))
done
if [ -n "$key" ]; then
  printf '%s\t%d\n' "$key" "$count"
fi
`

// wordCounts reads every file in dir and sums "word\tcount" lines
// across all of them. ok is false until the directory exists and every
// line in it parses, so a caller can poll it as a readiness check.
func wordCounts(dir string) (counts map[string]int, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false
	}
	counts = make(map[string]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, false
		}
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, "\t", 2)
			if len(parts) != 2 {
				return nil, false
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, false
			}
			counts[parts[0]] += n
		}
	}
	return counts, true
}

// TestWordCountEndToEnd boots a real Manager and two Workers on
// loopback TCP/UDP, submits a word-count job over the wire protocol,
// and checks the reduce output — the S1 scenario.
func TestWordCountEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	host := "127.0.0.1"
	managerPort := portBase(0)
	worker1Port := portBase(1)
	worker2Port := portBase(2)

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	outputDir := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(inputDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "part-00000"), []byte("apple banana\napple cherry\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "part-00001"), []byte("banana apple\n"), 0644))

	mapper := writeScript(t, root, "mapper.sh", wordCountMapper)
	reducer := writeScript(t, root, "reducer.sh", wordCountReducer)

	mgr := manager.NewManager(host, managerPort, root, nil, zerolog.Nop())
	go mgr.Run()

	w1 := worker.NewWorker(host, worker1Port, host, managerPort, root, zerolog.Nop())
	w2 := worker.NewWorker(host, worker2Port, host, managerPort, root, zerolog.Nop())
	go w1.Run()
	go w2.Run()

	// give the Manager's listeners and the Workers' registration
	// handshake time to settle before submitting a job; the scheduler's
	// assign loop would otherwise just retry until a Ready worker shows
	// up, but there is no point racing it.
	time.Sleep(300 * time.Millisecond)

	ok := protocol.Send(host, managerPort, protocol.Message{
		Type:              protocol.NewManagerJob,
		InputDirectory:    inputDir,
		OutputDirectory:   outputDir,
		MapperExecutable:  mapper,
		ReducerExecutable: reducer,
		NumMappers:        2,
		NumReducers:       2,
	})
	require.True(t, ok, "manager unreachable for job submission")

	want := map[string]int{"apple": 3, "banana": 2, "cherry": 1}
	var got map[string]int
	require.Eventually(t, func() bool {
		counts, ready := wordCounts(outputDir)
		if !ready {
			return false
		}
		got = counts
		return reflect.DeepEqual(counts, want)
	}, 20*time.Second, 200*time.Millisecond, "job did not produce the expected word counts")
	require.Equal(t, want, got)

	protocol.Send(host, managerPort, protocol.Message{Type: protocol.Shutdown})
}

// TestManagerShutdownWithNoActiveJob boots a Manager with no Workers
// and no submitted job, sends it a `shutdown` message, and checks that
// Run returns promptly — the S5 scenario.
func TestManagerShutdownWithNoActiveJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	host := "127.0.0.1"
	managerPort := portBase(3)

	mgr := manager.NewManager(host, managerPort, t.TempDir(), nil, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- mgr.Run() }()

	time.Sleep(300 * time.Millisecond)

	ok := protocol.Send(host, managerPort, protocol.Message{Type: protocol.Shutdown})
	require.True(t, ok, "manager unreachable for shutdown")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not shut down after a shutdown message with no active job")
	}
}
