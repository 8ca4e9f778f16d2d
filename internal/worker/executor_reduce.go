package worker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/alicklee/mapreduce/internal/mrutil"
	"github.com/rs/zerolog"
)

// ReduceTaskSpec is the task-executor's view of a `new_reduce_task`
// message.
type ReduceTaskSpec struct {
	TaskID          int
	InputPaths      []string
	Executable      string
	OutputDirectory string
}

// RunReduceTask runs one reduce task to completion: externally merges
// InputPaths (already sorted by the map stage) and pipes the merged
// stream into Executable's stdin, writing its stdout to a scratch
// file that is then promoted atomically into OutputDirectory.
func RunReduceTask(spec ReduceTaskSpec, scratchBase string, logger zerolog.Logger) error {
	scratch, err := mrutil.NewScratchDir(scratchBase, mrutil.ReduceTaskDirName(spec.TaskID))
	if err != nil {
		return fmt.Errorf("reduce task %d scratch dir: %w", spec.TaskID, err)
	}
	defer mrutil.Release(scratch)

	outPath := filepath.Join(scratch, mrutil.ReduceOutputName(spec.TaskID))
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("reduce task %d create output: %w", spec.TaskID, err)
	}

	cmd := exec.Command(spec.Executable)
	cmd.Stdout = outFile
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		outFile.Close()
		return fmt.Errorf("reduce task %d stdin pipe: %w", spec.TaskID, err)
	}

	if err := cmd.Start(); err != nil {
		outFile.Close()
		return fmt.Errorf("reduce task %d start %s: %w", spec.TaskID, spec.Executable, err)
	}

	mergeErr := mrutil.MergeSortedFiles(spec.InputPaths, stdin)
	stdin.Close()
	waitErr := cmd.Wait()
	closeErr := outFile.Close()

	if mergeErr != nil {
		return fmt.Errorf("reduce task %d merge inputs: %w", spec.TaskID, mergeErr)
	}
	if waitErr != nil {
		return fmt.Errorf("reduce task %d executable: %w", spec.TaskID, waitErr)
	}
	if closeErr != nil {
		return fmt.Errorf("reduce task %d close output: %w", spec.TaskID, closeErr)
	}

	if err := mrutil.PromoteFile(outPath, spec.OutputDirectory, mrutil.ReduceOutputName(spec.TaskID)); err != nil {
		return fmt.Errorf("reduce task %d promote output: %w", spec.TaskID, err)
	}

	logger.Debug().Int("task_id", spec.TaskID).Msg("reduce task complete")
	return nil
}
