package utils

// FixedSizeRing retains the most recent cap pushed elements, overwriting the
// oldest once full. Push-only; callers needing concurrency hold their own
// lock.
type FixedSizeRing struct {
	buf   []interface{}
	head  int64
	count int64
}

func NewFixedSizedRing(cap int64) *FixedSizeRing {
	return &FixedSizeRing{buf: make([]interface{}, cap)}
}

func (q *FixedSizeRing) IsEmpty() bool {
	return q.count == 0
}

func (q *FixedSizeRing) Count() int64 {
	return q.count
}

// Push stores v, evicting the oldest element when the ring is full.
func (q *FixedSizeRing) Push(v interface{}) {
	n := int64(len(q.buf))
	q.buf[(q.head+q.count)%n] = v
	if q.count < n {
		q.count++
	} else {
		q.head = (q.head + 1) % n
	}
}

// Elements returns the retained elements oldest first.
func (q *FixedSizeRing) Elements() []interface{} {
	n := int64(len(q.buf))
	out := make([]interface{}, q.count)
	for i := int64(0); i < q.count; i++ {
		out[i] = q.buf[(q.head+i)%n]
	}
	return out
}
