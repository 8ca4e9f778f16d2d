package worker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alicklee/mapreduce/internal/mrutil"
	"github.com/rs/zerolog"
)

// MapTaskSpec is the task-executor's view of a `new_map_task` message.
type MapTaskSpec struct {
	TaskID          int
	InputPaths      []string
	Executable      string
	NumPartitions   int
	OutputDirectory string
}

// RunMapTask runs one map task to completion: for each input file,
// stream it through Executable and route each output line to a
// partition file by md5(key) mod NumPartitions, then sort every
// partition file and atomically promote it into OutputDirectory.
func RunMapTask(spec MapTaskSpec, scratchBase string, logger zerolog.Logger) error {
	scratch, err := mrutil.NewScratchDir(scratchBase, mrutil.MapTaskDirName(spec.TaskID))
	if err != nil {
		return fmt.Errorf("map task %d scratch dir: %w", spec.TaskID, err)
	}
	defer mrutil.Release(scratch)

	paths := make([]string, spec.NumPartitions)
	files := make([]*os.File, spec.NumPartitions)
	writers := make([]*bufio.Writer, spec.NumPartitions)
	for p := 0; p < spec.NumPartitions; p++ {
		path := filepath.Join(scratch, mrutil.MapOutputName(spec.TaskID, p))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("map task %d open partition %d: %w", spec.TaskID, p, err)
		}
		paths[p] = path
		files[p] = f
		writers[p] = bufio.NewWriter(f)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, input := range spec.InputPaths {
		err := streamThroughExecutable(spec.Executable, input, func(line string) error {
			key := mrutil.LineKey(line)
			p := mrutil.Partition(key, spec.NumPartitions)
			if _, err := writers[p].WriteString(line); err != nil {
				return err
			}
			return writers[p].WriteByte('\n')
		})
		if err != nil {
			return fmt.Errorf("map task %d input %s: %w", spec.TaskID, input, err)
		}
	}

	for p, w := range writers {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("map task %d flush partition %d: %w", spec.TaskID, p, err)
		}
		if err := files[p].Close(); err != nil {
			return fmt.Errorf("map task %d close partition %d: %w", spec.TaskID, p, err)
		}
	}

	for p := 0; p < spec.NumPartitions; p++ {
		if err := mrutil.SortFileLines(paths[p]); err != nil {
			return fmt.Errorf("map task %d sort partition %d: %w", spec.TaskID, p, err)
		}
		name := mrutil.MapOutputName(spec.TaskID, p)
		if err := mrutil.PromoteFile(paths[p], spec.OutputDirectory, name); err != nil {
			return fmt.Errorf("map task %d promote partition %d: %w", spec.TaskID, p, err)
		}
	}

	logger.Debug().Int("task_id", spec.TaskID).Int("partitions", spec.NumPartitions).Msg("map task complete")
	return nil
}
