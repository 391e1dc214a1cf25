package relay

// ring is the double-buffered egress queue: BufferCount fixed-MTU buffers,
// delimited by activeIdx (being filled) and flushIdx (awaiting send).
// activeIdx == flushIdx means the queue is empty.
type ring struct {
	bufs       [][]byte
	usedLength []int
	activeIdx  int
	flushIdx   int
}

func newRing() *ring {
	bufs := make([][]byte, BufferCount)
	for i := range bufs {
		bufs[i] = make([]byte, MTU)
	}
	return &ring{bufs: bufs, usedLength: make([]int, BufferCount)}
}

func (r *ring) idle() bool {
	return r.activeIdx == r.flushIdx
}

// pack serializes table into the active buffer and rotates. shouldDrain
// reports whether the queue was previously idle, the signal the caller
// uses to decide whether to attempt an immediate drain. If the ring is
// saturated (the next buffer in the ring is still full), the table is
// discarded and no rotation happens: this is the capacity-loss error
// path, reported separately via discarded so the caller can log it.
func (r *ring) pack(table *SlotTable) (shouldDrain, discarded bool) {
	newActiveIdx := (r.activeIdx + 1) % BufferCount
	if r.usedLength[newActiveIdx] > 0 {
		table.Reset()
		return false, true
	}

	wasIdle := r.idle()
	buf := r.bufs[r.activeIdx]
	n := 0
	for i := 0; i < table.Used(); i++ {
		name, payload, hasSamples := table.Slot(i)
		if !hasSamples {
			continue
		}
		n += copy(buf[n:], name)
		m := copy(buf[n:], payload)
		buf[n+m-1] = '\n'
		n += m
	}
	r.usedLength[r.activeIdx] = n
	r.activeIdx = newActiveIdx
	table.Reset()
	return wasIdle, false
}

// peek returns the bytes queued at flushIdx, or ok=false if the ring is
// idle.
func (r *ring) peek() (data []byte, ok bool) {
	if r.idle() {
		return nil, false
	}
	idx := r.flushIdx
	return r.bufs[idx][:r.usedLength[idx]], true
}

// advance marks the buffer at flushIdx as sent and moves flushIdx forward,
// regardless of send outcome, matching the best-effort/no-retry send
// policy. Reports whether the ring is now idle.
func (r *ring) advance() (idle bool) {
	r.usedLength[r.flushIdx] = 0
	r.flushIdx = (r.flushIdx + 1) % BufferCount
	return r.idle()
}
