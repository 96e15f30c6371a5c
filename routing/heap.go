package routing

import "container/heap"

// distanceHeapEntry is a single (node, priority) pair held in the
// priority queue driving both the DHC refresher's Dijkstra pass and the
// pathfinder's best-first search.
type distanceHeapEntry struct {
	node     Vertex
	priority uint64
}

// distanceHeap is a binary min-heap over distanceHeapEntry, keyed by
// priority. It implements container/heap.Interface directly, the same
// approach the upstream router takes rather than hand-rolling a heap from
// scratch.
//
// Per section 4.1, there is no decrease-key operation: callers simply
// push a node again whenever they discover a better distance to it, and
// rely on the visited-marking of the DHC writer (or Dijkstra's visited
// set) plus the staleness check at pop time to ignore superseded entries.
type distanceHeap []distanceHeapEntry

func (h distanceHeap) Len() int { return len(h) }

func (h distanceHeap) Less(i, j int) bool {
	return h[i].priority < h[j].priority
}

func (h distanceHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *distanceHeap) Push(x interface{}) {
	*h = append(*h, x.(distanceHeapEntry))
}

func (h *distanceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// priorityQueue wraps distanceHeap behind the push/pop-min API named in
// section 4.1, so callers never need to import container/heap directly.
type priorityQueue struct {
	h distanceHeap
}

// newPriorityQueue returns an empty priority queue.
func newPriorityQueue() *priorityQueue {
	pq := &priorityQueue{}
	heap.Init(&pq.h)
	return pq
}

// push inserts node at the given priority. O(log n).
func (pq *priorityQueue) push(node Vertex, priority uint64) {
	heap.Push(&pq.h, distanceHeapEntry{node: node, priority: priority})
}

// popMin removes and returns the lowest-priority entry. ok is false if
// the queue was empty. O(log n).
func (pq *priorityQueue) popMin() (node Vertex, priority uint64, ok bool) {
	if pq.h.Len() == 0 {
		return Vertex{}, 0, false
	}
	entry := heap.Pop(&pq.h).(distanceHeapEntry)
	return entry.node, entry.priority, true
}

// empty reports whether the queue has no remaining entries.
func (pq *priorityQueue) empty() bool {
	return pq.h.Len() == 0
}
