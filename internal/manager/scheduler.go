package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicklee/mapreduce/internal/mrutil"
	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/rs/zerolog"
)

// stagePollInterval is the idle-retry sleep used both when no Ready
// worker is available and when no task is currently issuable.
const stagePollInterval = 100 * time.Millisecond

// FinishedMsg is a `finished` message forwarded from the control loop
// to whichever stage is currently running.
type FinishedMsg struct {
	TaskID int
	Addr   Addr
}

// stageState is the mutable bookkeeping for one running map or reduce
// stage: the replay queue, in-flight assignments, and completion
// count.
type stageState struct {
	mu          sync.Mutex
	nextTID     int
	total       int
	replay      []int
	outstanding map[int]Addr
	doneCount   int
}

func (st *stageState) isDone() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.doneCount >= st.total
}

// Scheduler runs the FIFO job queue, sequencing map then reduce for
// each job and reassigning tasks whose worker dies mid-stage.
type Scheduler struct {
	registry   *Registry
	queue      *JobQueue
	metrics    *Metrics
	logger     zerolog.Logger
	sharedDir  string
	finishedCh chan FinishedMsg
	shutdown   *atomic.Bool

	mu    sync.Mutex
	stage *stageState
}

// NewScheduler builds a Scheduler over registry and queue. sharedDir is
// the base directory under which per-job scratch directories are
// created (the CLI's --shared_dir override, or the OS temp dir).
func NewScheduler(registry *Registry, queue *JobQueue, metrics *Metrics, sharedDir string, shutdown *atomic.Bool, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry:   registry,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
		sharedDir:  sharedDir,
		finishedCh: make(chan FinishedMsg, 256),
		shutdown:   shutdown,
	}
}

// Finished queues a `finished` message from the control loop on a
// buffered channel drained by the running stage loop. A message that
// arrives while no stage runs is consumed by the next stage; it is
// dropped only when the buffer is full.
func (s *Scheduler) Finished(msg FinishedMsg) {
	select {
	case s.finishedCh <- msg:
	default:
		s.logger.Warn().Int("task_id", msg.TaskID).Msg("finished channel full, dropping")
	}
}

// HandleDeath marks addr Dead in the registry and, if it held a task
// in the currently running stage, pushes that task id onto the
// stage's replay queue.
func (s *Scheduler) HandleDeath(addr Addr) {
	taskID, hadTask := s.registry.MarkDead(addr)
	if s.metrics != nil {
		s.metrics.Refresh(s.registry)
	}
	if !hadTask {
		return
	}
	s.mu.Lock()
	st := s.stage
	s.mu.Unlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	delete(st.outstanding, taskID)
	st.replay = append(st.replay, taskID)
	st.mu.Unlock()
	if s.metrics != nil {
		s.metrics.TasksReassigned.Inc()
	}
}

// EnqueueReplay pushes taskID onto the currently running stage's
// replay queue, used when Register finds a tombstoned Worker that was
// holding a task.
func (s *Scheduler) EnqueueReplay(taskID int) {
	s.mu.Lock()
	st := s.stage
	s.mu.Unlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	st.replay = append(st.replay, taskID)
	st.mu.Unlock()
	if s.metrics != nil {
		s.metrics.TasksReassigned.Inc()
	}
}

// Run drains the job queue strictly in submission order until the
// queue is closed at shutdown.
func (s *Scheduler) Run() {
	for {
		job, ok := s.queue.Dequeue()
		if !ok {
			return
		}
		if err := s.RunJob(job); err != nil {
			s.logger.Error().Err(err).Int("job_id", job.ID).Msg("job failed")
		}
	}
}

// RunJob executes one job end to end: prepare directories, partition
// inputs, run the map stage, partition intermediates, run the reduce
// stage, clean up.
func (s *Scheduler) RunJob(job *Job) error {
	s.logger.Info().Int("job_id", job.ID).Msg("starting job")

	if err := prepareOutputDir(job.OutputDirectory); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}

	scratch, err := mrutil.NewScratchDir(s.sharedDir, mrutil.JobDirName(job.ID))
	if err != nil {
		return fmt.Errorf("create job scratch dir: %w", err)
	}
	job.ScratchDir = scratch
	defer mrutil.Release(scratch)

	mapGroups, err := partitionInputsForMap(job.InputDirectory, job.NumMappers)
	if err != nil {
		return fmt.Errorf("partition map inputs: %w", err)
	}
	mapTasks := make([]Task, job.NumMappers)
	for i := range mapTasks {
		mapTasks[i] = Task{
			ID:              i,
			Stage:           StageMap,
			InputPaths:      mapGroups[i],
			Executable:      job.MapExecutable,
			NumPartitions:   job.NumReducers,
			OutputDirectory: scratch,
		}
	}
	if err := s.runStage(job, StageMap, mapTasks); err != nil {
		return fmt.Errorf("map stage: %w", err)
	}

	reduceGroups, err := partitionInputsForReduce(scratch, job.NumReducers)
	if err != nil {
		return fmt.Errorf("partition reduce inputs: %w", err)
	}
	reduceTasks := make([]Task, job.NumReducers)
	for i := range reduceTasks {
		reduceTasks[i] = Task{
			ID:              i,
			Stage:           StageReduce,
			InputPaths:      reduceGroups[i],
			Executable:      job.ReduceExecutable,
			OutputDirectory: job.OutputDirectory,
		}
	}
	if err := s.runStage(job, StageReduce, reduceTasks); err != nil {
		return fmt.Errorf("reduce stage: %w", err)
	}

	s.logger.Info().Int("job_id", job.ID).Msg("job complete")
	return nil
}

// runStage assigns every task of one stage to Ready workers, retrying
// through the replay queue until all tasks report completion.
func (s *Scheduler) runStage(job *Job, stage Stage, tasks []Task) error {
	total := len(tasks)
	if total == 0 {
		return nil
	}

	st := &stageState{total: total, outstanding: make(map[int]Addr)}
	s.mu.Lock()
	s.stage = st
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stage = nil
		s.mu.Unlock()
	}()

	assignDone := make(chan struct{})
	go s.assignLoop(job, stage, tasks, st, assignDone)

	for !st.isDone() {
		if s.shutdown.Load() {
			break
		}
		select {
		case fin := <-s.finishedCh:
			s.handleFinished(st, fin)
		case <-time.After(stagePollInterval):
		}
	}
	<-assignDone
	return nil
}

// assignLoop issues tasks (replay first, then fresh) to Ready workers
// until every task in the stage has been issued and the stage is
// marked done by the completion side.
func (s *Scheduler) assignLoop(job *Job, stage Stage, tasks []Task, st *stageState, done chan struct{}) {
	defer close(done)
	for {
		if st.isDone() || s.shutdown.Load() {
			return
		}

		st.mu.Lock()
		var taskID int
		haveTask := false
		if len(st.replay) > 0 {
			taskID, st.replay = st.replay[0], st.replay[1:]
			haveTask = true
		} else if st.nextTID < st.total {
			taskID = st.nextTID
			st.nextTID++
			haveTask = true
		}
		st.mu.Unlock()

		if !haveTask {
			time.Sleep(stagePollInterval)
			continue
		}

		for {
			if s.shutdown.Load() {
				return
			}
			addr, ok := s.registry.NextReady()
			if !ok {
				time.Sleep(stagePollInterval)
				continue
			}

			msg := buildTaskMessage(job, stage, tasks[taskID], addr)
			if !protocol.Send(addr.Host, addr.Port, msg) {
				s.registry.MarkDead(addr)
				if s.metrics != nil {
					s.metrics.Refresh(s.registry)
				}
				st.mu.Lock()
				st.replay = append(st.replay, taskID)
				st.mu.Unlock()
				if s.metrics != nil {
					s.metrics.TasksReassigned.Inc()
				}
				break
			}

			st.mu.Lock()
			st.outstanding[taskID] = addr
			st.mu.Unlock()
			s.registry.MarkBusy(addr, taskID)
			if s.metrics != nil {
				s.metrics.TasksAssigned.Inc()
				s.metrics.Refresh(s.registry)
			}
			break
		}
	}
}

// handleFinished applies the duplicate/stale-finished rule: only the
// recorded owner's reply retires the task; any reply still marks its
// live sender Ready.
func (s *Scheduler) handleFinished(st *stageState, fin FinishedMsg) {
	st.mu.Lock()
	owner, exists := st.outstanding[fin.TaskID]
	if exists && owner == fin.Addr {
		delete(st.outstanding, fin.TaskID)
		st.doneCount++
	}
	st.mu.Unlock()

	if s.registry.IsAlive(fin.Addr) {
		s.registry.MarkReady(fin.Addr)
	}
	if s.metrics != nil {
		s.metrics.Refresh(s.registry)
	}
}

func buildTaskMessage(job *Job, stage Stage, task Task, addr Addr) protocol.Message {
	if stage == StageMap {
		return protocol.Message{
			Type:            protocol.NewMapTask,
			TaskID:          task.ID,
			InputPaths:      task.InputPaths,
			Executable:      task.Executable,
			OutputDirectory: task.OutputDirectory,
			NumPartitions:   task.NumPartitions,
			WorkerHost:      addr.Host,
			WorkerPort:      addr.Port,
		}
	}
	return protocol.Message{
		Type:            protocol.NewReduceTask,
		TaskID:          task.ID,
		InputPaths:      task.InputPaths,
		Executable:      task.Executable,
		OutputDirectory: task.OutputDirectory,
		WorkerHost:      addr.Host,
		WorkerPort:      addr.Port,
	}
}

func prepareOutputDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0777)
}

// partitionInputsForMap lists inputDir, sorts file names
// lexicographically, and assigns file i to map task i mod m. Empty
// groups are kept (and later issued as empty tasks) so the file
// naming scheme stays deterministic regardless of input count.
func partitionInputsForMap(inputDir string, m int) ([][]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	groups := make([][]string, m)
	for i, name := range names {
		idx := i % m
		groups[idx] = append(groups[idx], filepath.Join(inputDir, name))
	}
	return groups, nil
}

var reducePartitionSuffix = regexp.MustCompile(`-part(\d{5})$`)

// partitionInputsForReduce lists scratchDir, groups files by their
// "-part{PART:05d}" suffix, and returns one group per reduce task.
func partitionInputsForReduce(scratchDir string, r int) ([][]string, error) {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	groups := make([][]string, r)
	for _, name := range names {
		match := reducePartitionSuffix.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		part, err := strconv.Atoi(match[1])
		if err != nil || part < 0 || part >= r {
			continue
		}
		groups[part] = append(groups[part], filepath.Join(scratchDir, name))
	}
	return groups, nil
}
