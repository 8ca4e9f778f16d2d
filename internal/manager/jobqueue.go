package manager

import "sync"

// JobQueue is the Manager's FIFO of submitted jobs. New jobs always
// append; the scheduler dequeues strictly in submission order, so the
// next job never begins before the previous job's output is written.
type JobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []*Job
	closed bool
}

// NewJobQueue returns an empty queue.
func NewJobQueue() *JobQueue {
	q := &JobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends job to the tail of the queue and wakes the
// scheduler if it is waiting for work.
func (q *JobQueue) Enqueue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
}

// Dequeue blocks until a job is available or the queue is closed,
// returning ok=false in the latter case so the scheduler loop can
// exit cleanly on shutdown.
func (q *JobQueue) Dequeue() (job *Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return nil, false
	}
	job = q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Close wakes any blocked Dequeue call and makes future calls return
// immediately with ok=false.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
