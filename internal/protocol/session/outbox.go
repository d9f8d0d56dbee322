package session

// callQueue is an ordered list of calls. The engine keeps two of them: the
// pending queue and the in-flight batch.
type callQueue struct {
	items []*Call
}

func (q *callQueue) Len() int {
	return len(q.items)
}

func (q *callQueue) PushBack(c *Call) {
	q.items = append(q.items, c)
}

// PushFront puts calls ahead of everything queued, keeping their order.
func (q *callQueue) PushFront(calls []*Call) {
	if len(calls) == 0 {
		return
	}
	merged := make([]*Call, 0, len(calls)+len(q.items))
	merged = append(merged, calls...)
	merged = append(merged, q.items...)
	q.items = merged
}

// PopFront removes and returns the oldest call.
func (q *callQueue) PopFront() (*Call, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return c, true
}

// Drain empties the queue and returns its calls in order.
func (q *callQueue) Drain() []*Call {
	out := q.items
	q.items = nil
	return out
}

// Commands returns the command text of every queued call, in order.
func (q *callQueue) Commands() []string {
	out := make([]string, 0, len(q.items))
	for _, c := range q.items {
		out = append(out, c.Command)
	}
	return out
}

func (q *callQueue) Idle() bool {
	return len(q.items) == 1 && q.items[0].idle
}
