package mrutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewScratchDir creates a private directory named "<prefix>-<uuid>"
// under base and returns its path. Callers are responsible for
// removing it on every exit path (success, task failure, shutdown) —
// this is the scoped-acquisition half of the discipline; Release does
// the release half.
func NewScratchDir(base, prefix string) (string, error) {
	name := fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fmt.Errorf("create scratch dir %s: %w", dir, err)
	}
	return dir, nil
}

// Release removes dir and logs nothing on failure; scratch directories
// are advisory cleanup, not correctness-critical, so a failed removal
// must never block a shutdown or task-completion path.
func Release(dir string) {
	if dir == "" {
		return
	}
	os.RemoveAll(dir)
}

// MapTaskDirName is the scratch-directory prefix for a map task.
func MapTaskDirName(taskID int) string {
	return fmt.Sprintf("mapreduce-local-task%05d", taskID)
}

// ReduceTaskDirName is the scratch-directory prefix for a reduce task.
func ReduceTaskDirName(taskID int) string {
	return fmt.Sprintf("mapreduce-local-task%05d", taskID)
}

// JobDirName is the scratch-directory prefix for a job's shared state.
func JobDirName(jobID int) string {
	return fmt.Sprintf("mapreduce-shared-job%05d", jobID)
}

// MapOutputName names a map task's per-partition output file.
func MapOutputName(taskID, partition int) string {
	return fmt.Sprintf("maptask%05d-part%05d", taskID, partition)
}

// ReduceOutputName names a reduce task's final output file.
func ReduceOutputName(taskID int) string {
	return fmt.Sprintf("part-%05d", taskID)
}

// PromoteFile atomically moves src into dir as dir/name, creating dir
// if needed and relying on os.Rename's same-filesystem atomicity: src
// and dir must be on the same filesystem, or the rename fails.
func PromoteFile(src, dir, name string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote %s to %s: %w", src, dst, err)
	}
	return nil
}
