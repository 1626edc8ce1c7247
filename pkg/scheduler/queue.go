package scheduler

import "container/heap"

// priorityQueue is a min-heap of tasks keyed by (priority, task_id), the
// same structure the teacher's scheduling.Queue wraps around a plain
// slice for pod retry — here backed directly by container/heap per the
// design note in spec.md §9 ("min-heap of (priority, task_id,
// task_handle)... avoids moving tasks on heap rebalancing").
type priorityQueue []*Task

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].ID < q[j].ID
}
func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *priorityQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Queue wraps priorityQueue with the heap invariants maintained and
// exposes the simple Push/Pop/List shape the scheduler uses.
type Queue struct {
	h priorityQueue
}

func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

func (q *Queue) Push(t *Task) {
	heap.Push(&q.h, t)
}

// Pop removes and returns the task with the smallest (priority, id).
func (q *Queue) Pop() (*Task, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Task), true
}

func (q *Queue) Len() int { return q.h.Len() }

// List returns every queued task without removing them, for inspection
// and for the deadlock diagnostic.
func (q *Queue) List() []*Task {
	out := make([]*Task, len(q.h))
	copy(out, q.h)
	return out
}
