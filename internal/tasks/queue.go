// Package tasks provides the deferred-task queue drained once per simulation
// tick. Tasks are one-shot: they run after a number of ticks or right after a
// dependency completes, and are never retried.
package tasks

import (
	"container/heap"

	"shelfcore/pkg/domain"
)

// TaskID identifies a scheduled task.
type TaskID uint64

type task struct {
	id   TaskID
	name string
	due  uint64
	fn   func()
}

// taskHeap is a min-heap ordered by due tick, then by scheduling order.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].id < h[j].id
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Queue schedules one-shot continuations. It is driven from the single
// simulation thread and is not safe for concurrent use.
type Queue struct {
	tick      uint64
	seq       TaskID
	due       taskHeap
	waiting   map[TaskID][]*task
	done      map[TaskID]bool
	cancelled map[TaskID]bool
	logger    domain.Logger
}

// NewQueue returns an empty queue. A nil logger discards output.
func NewQueue(logger domain.Logger) *Queue {
	q := &Queue{
		waiting:   make(map[TaskID][]*task),
		done:      make(map[TaskID]bool),
		cancelled: make(map[TaskID]bool),
		logger:    domain.LoggerOrNoop(logger),
	}
	heap.Init(&q.due)
	return q
}

// Now returns the number of ticks processed so far.
func (q *Queue) Now() uint64 { return q.tick }

// After schedules fn to run once ticks simulation steps have passed. Values below
// one run on the next Tick.
func (q *Queue) After(name string, ticks int, fn func()) TaskID {
	if ticks < 1 {
		ticks = 1
	}
	q.seq++
	t := &task{id: q.seq, name: name, due: q.tick + uint64(ticks), fn: fn}
	heap.Push(&q.due, t)
	return t.id
}

// Then schedules fn to run in the same tick right after dependency completes. If the
// dependency already ran the task is due on the next Tick; if it was cancelled or
// never existed, fn never runs. A task cannot depend on itself or on a later task.
func (q *Queue) Then(name string, dependency TaskID, fn func()) TaskID {
	known := dependency != 0 && dependency <= q.seq
	q.seq++
	t := &task{id: q.seq, name: name, fn: fn}
	switch {
	case q.done[dependency]:
		t.due = q.tick + 1
		heap.Push(&q.due, t)
	case q.cancelled[dependency] || !known:
		q.cancelled[t.id] = true
	default:
		q.waiting[dependency] = append(q.waiting[dependency], t)
	}
	return t.id
}

// Cancel prevents a pending task and its dependents from running. It reports
// whether the task was still pending.
func (q *Queue) Cancel(id TaskID) bool {
	if q.done[id] || q.cancelled[id] {
		return false
	}
	q.cancelled[id] = true
	for _, dep := range q.waiting[id] {
		q.Cancel(dep.id)
	}
	delete(q.waiting, id)
	return true
}

// RunNow runs a scheduled task immediately instead of on its due tick, together
// with the dependents it unblocks. Tasks still waiting on a dependency, finished
// and cancelled tasks are left alone. It returns the number of tasks run.
func (q *Queue) RunNow(id TaskID) int {
	if q.done[id] || q.cancelled[id] {
		return 0
	}
	for i, t := range q.due {
		if t.id == id {
			heap.Remove(&q.due, i)
			return q.run(t)
		}
	}
	return 0
}

// Done reports whether a task has run.
func (q *Queue) Done(id TaskID) bool { return q.done[id] }

// Pending returns the number of tasks that have neither run nor been cancelled.
func (q *Queue) Pending() int {
	n := 0
	for _, t := range q.due {
		if !q.cancelled[t.id] {
			n++
		}
	}
	for _, deps := range q.waiting {
		for _, t := range deps {
			if !q.cancelled[t.id] {
				n++
			}
		}
	}
	return n
}

// Tick advances the simulation by one step and runs every due task along with
// the dependents they unblock. It returns the number of tasks run.
func (q *Queue) Tick() int {
	q.tick++
	ran := 0
	for q.due.Len() > 0 && q.due[0].due <= q.tick {
		t := heap.Pop(&q.due).(*task)
		ran += q.run(t)
	}
	return ran
}

func (q *Queue) run(t *task) int {
	if q.cancelled[t.id] {
		return 0
	}
	q.logger.Debug("run deferred task", "task", t.name, "id", t.id, "tick", q.tick)
	t.fn()
	q.done[t.id] = true
	ran := 1
	deps := q.waiting[t.id]
	delete(q.waiting, t.id)
	for _, dep := range deps {
		ran += q.run(dep)
	}
	return ran
}

// Drain ticks until nothing is pending or maxTicks steps have passed, returning the
// number of ticks taken.
func (q *Queue) Drain(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && q.Pending() > 0 {
		q.Tick()
		ticks++
	}
	return ticks
}
