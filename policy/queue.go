// Package policy holds the reference implementations of the worklist ordering, the split/evict/spill decision and
// the spiller used by regalloc.Allocator.
package policy

import (
	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/tetratelabs/regalloc"
)

// Queue is a regalloc.Queue which dequeues the most expensive live ranges to spill first: the higher the weight,
// the earlier. Ties are broken by the larger size first, then by the lower VRegID, so the order is deterministic.
type Queue struct {
	pq *priorityqueue.Queue
}

var _ regalloc.Queue = (*Queue)(nil)

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{pq: priorityqueue.NewWith(compareLiveRanges)}
}

// compareLiveRanges orders the heap so that the first element is the next one to allocate.
func compareLiveRanges(a, b interface{}) int {
	x, y := a.(*regalloc.LiveRange), b.(*regalloc.LiveRange)
	switch {
	case x.Weight > y.Weight:
		return -1
	case x.Weight < y.Weight:
		return 1
	}
	if xs, ys := x.Size(), y.Size(); xs != ys {
		if xs > ys {
			return -1
		}
		return 1
	}
	switch xid, yid := x.V.ID(), y.V.ID(); {
	case xid < yid:
		return -1
	case xid > yid:
		return 1
	default:
		return 0
	}
}

// Enqueue implements regalloc.Queue.
func (q *Queue) Enqueue(lr *regalloc.LiveRange) {
	q.pq.Enqueue(lr)
}

// Dequeue implements regalloc.Queue.
func (q *Queue) Dequeue() *regalloc.LiveRange {
	v, ok := q.pq.Dequeue()
	if !ok {
		return nil
	}
	return v.(*regalloc.LiveRange)
}

// Len implements regalloc.Queue.
func (q *Queue) Len() int {
	return q.pq.Size()
}

// Reset empties the queue so that it can be reused for another function.
func (q *Queue) Reset() {
	q.pq.Clear()
}
