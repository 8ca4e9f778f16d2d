package manager

// workerHeap is a container/heap keyed by (State, Seq): Ready workers
// with the lowest sequence number sort first, so the top of the heap
// is always the canonical next assignee, or reveals that none exists.
type workerHeap []*Worker

func (h workerHeap) Len() int { return len(h) }

func (h workerHeap) Less(i, j int) bool {
	if h[i].State != h[j].State {
		return h[i].State < h[j].State
	}
	return h[i].Seq < h[j].Seq
}

func (h workerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *workerHeap) Push(x any) {
	w := x.(*Worker)
	w.heapIndex = len(*h)
	*h = append(*h, w)
}

func (h *workerHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.heapIndex = -1
	*h = old[:n-1]
	return w
}
