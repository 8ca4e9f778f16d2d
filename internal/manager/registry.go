package manager

import (
	"container/heap"
	"sync"
)

// Registry tracks every Worker the Manager has ever seen, keyed by
// address, plus the priority heap used to pick the next assignee. A
// Dead record is never removed — it is the tombstone that lets a later
// registration from the same address be recognized.
type Registry struct {
	mu      sync.Mutex
	workers map[Addr]*Worker
	heap    workerHeap
	nextSeq int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	h := workerHeap{}
	heap.Init(&h)
	return &Registry{
		workers: make(map[Addr]*Worker),
		heap:    h,
	}
}

// Register installs a fresh Ready record for addr. If a record already
// exists there, it is transitioned to Dead first and its in-flight
// task id, if any, is returned so the scheduler can enqueue a replay:
// re-registration marks the prior record dead and reassigns whatever
// task it was holding.
func (r *Registry) Register(addr Addr) (worker *Worker, replayTaskID int, hasReplay bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.workers[addr]; ok && prev.State != Dead {
		if prev.State == Busy {
			replayTaskID, hasReplay = prev.TaskID, true
		}
		prev.State = Dead
		heap.Fix(&r.heap, prev.heapIndex)
	}

	r.nextSeq++
	w := &Worker{
		Addr:  addr,
		State: Ready,
		Seq:   r.nextSeq,
	}
	r.workers[addr] = w
	heap.Push(&r.heap, w)
	return w, replayTaskID, hasReplay
}

// MarkBusy transitions addr to Busy holding taskID. No-op if addr is
// unknown.
func (r *Registry) MarkBusy(addr Addr, taskID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[addr]
	if !ok {
		return
	}
	w.State = Busy
	w.TaskID = taskID
	heap.Fix(&r.heap, w.heapIndex)
}

// MarkReady transitions addr to Ready. A Dead worker is never revived
// by this call — only Register may bring an address back to Ready.
func (r *Registry) MarkReady(addr Addr) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, found := r.workers[addr]
	if !found || w.State == Dead {
		return false
	}
	w.State = Ready
	w.TaskID = 0
	heap.Fix(&r.heap, w.heapIndex)
	return true
}

// MarkDead transitions addr to Dead. If it was Busy, its assigned task
// id is returned so the caller can push it to the stage's replay
// queue.
func (r *Registry) MarkDead(addr Addr) (taskID int, hadTask bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[addr]
	if !ok || w.State == Dead {
		return 0, false
	}
	if w.State == Busy {
		taskID, hadTask = w.TaskID, true
	}
	w.State = Dead
	heap.Fix(&r.heap, w.heapIndex)
	return taskID, hadTask
}

// IsAlive reports whether addr is known and not Dead — used to decide
// whether a stray finished/heartbeat sender should still be marked
// Ready.
func (r *Registry) IsAlive(addr Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[addr]
	return ok && w.State != Dead
}

// NextReady returns the Ready worker with the lowest registration
// sequence number, or ok=false if none is currently Ready.
func (r *Registry) NextReady() (addr Addr, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.heap) == 0 || r.heap[0].State != Ready {
		return Addr{}, false
	}
	return r.heap[0].Addr, true
}

// ResetHeartbeat zeroes the missed-heartbeat counter for addr. Unknown
// or Dead addresses are ignored.
func (r *Registry) ResetHeartbeat(addr Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[addr]
	if !ok || w.State == Dead {
		return
	}
	w.MissedHeartbeats = 0
}

// AgeHeartbeats increments every non-Dead worker's missed-heartbeat
// counter and returns the addresses whose counter is now at or above
// threshold — the Manager's heartbeat monitor marks those Dead, so a
// worker is returned again on later calls only if it stays non-Dead.
func (r *Registry) AgeHeartbeats(threshold int) []Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []Addr
	for addr, w := range r.workers {
		if w.State == Dead {
			continue
		}
		w.MissedHeartbeats++
		if w.MissedHeartbeats >= threshold {
			expired = append(expired, addr)
		}
	}
	return expired
}

// LiveWorkers returns the addresses of every non-Dead worker, used by
// the control loop to broadcast shutdown.
func (r *Registry) LiveWorkers() []Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Addr
	for addr, w := range r.workers {
		if w.State != Dead {
			out = append(out, addr)
		}
	}
	return out
}
