package relay

import (
	"bytes"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/relaycore/statsd-relay/internal/lexer"
)

// invalidSampleLogRate and invalidSampleLogBurst bound how often an invalid
// sample is actually written to the log; a single noisy misconfigured
// client sending garbage at line rate must not be able to flood it.
const (
	invalidSampleLogRate  = 5
	invalidSampleLogBurst = 20
)

type metricKind int

const (
	kindUnknown metricKind = iota
	kindCounter
	kindOther
)

// slot is one metric name's accumulator within the current flush window.
// buf holds "name:payload", where payload covers buf[nameLen:length].
type slot struct {
	buf     []byte
	nameLen int
	length  int
	kind    metricKind
	counter float64
}

// SlotTable is the in-memory aggregation table for the current flush
// window. It is bounded to NumSlots entries and is not safe for concurrent
// use; callers must serialize access (the reactor goroutine owns it
// exclusively).
type SlotTable struct {
	log               logrus.FieldLogger
	invalidLogLimiter *rate.Limiter

	slots      []slot
	used       int
	accounting int

	// onOverflow is invoked synchronously when appending the next sample
	// would exceed MTU. It must pack and reset the table (used=0,
	// accounting=0) before returning, so the caller can keep inserting into
	// a fresh slot.
	onOverflow func()
}

// NewSlotTable allocates a slot table with a fixed NumSlots-size arena.
// The arena is reused for the lifetime of the table; flushing never
// reallocates it.
func NewSlotTable(log logrus.FieldLogger, onOverflow func()) *SlotTable {
	slots := make([]slot, NumSlots)
	for i := range slots {
		slots[i].buf = make([]byte, MTU)
	}
	return &SlotTable{
		log:               log,
		invalidLogLimiter: rate.NewLimiter(invalidSampleLogRate, invalidSampleLogBurst),
		slots:             slots,
		onOverflow:        onOverflow,
	}
}

// logInvalid writes an invalid-sample log line, subject to invalidLogLimiter
// so a single noisy source cannot flood the log at line rate.
func (t *SlotTable) logInvalid(entry *logrus.Entry, msg string) {
	if t.invalidLogLimiter.Allow() {
		entry.Error(msg)
	}
}

// Used returns the number of slots currently populated.
func (t *SlotTable) Used() int { return t.used }

// Accounting returns the current active-buffer length accounting value.
func (t *SlotTable) Accounting() int { return t.accounting }

// Reset discards all slots, returning the table to an empty flush window.
func (t *SlotTable) Reset() {
	t.used = 0
	t.accounting = 0
}

// Slot exposes a read view of slot i for the packer. i must be < Used().
func (t *SlotTable) Slot(i int) (name, payload []byte, hasSamples bool) {
	s := &t.slots[i]
	return s.buf[:s.nameLen], s.buf[s.nameLen:s.length], s.length > s.nameLen
}

func (t *SlotTable) find(name []byte) int {
	for i := 0; i < t.used; i++ {
		if t.slots[i].nameLen == len(name) && bytes.Equal(t.slots[i].buf[:len(name)], name) {
			return i
		}
	}
	return -1
}

func (t *SlotTable) addSlot(name []byte) int {
	idx := t.used
	s := &t.slots[idx]
	s.nameLen = len(name)
	s.length = len(name)
	s.kind = kindUnknown
	s.counter = 0
	copy(s.buf, name)
	t.accounting += len(name)
	t.used++
	return idx
}

func (t *SlotTable) findOrCreate(name []byte) int {
	if idx := t.find(name); idx >= 0 {
		return idx
	}
	if t.used >= len(t.slots) || t.accounting+len(name) > MTU {
		t.onOverflow()
	}
	return t.addSlot(name)
}

// InsertLine parses one StatsD line (including its terminating '\n') and
// folds its samples into the table, triggering onOverflow as needed. The
// line's length bounds (>=6 and < MTU-MaxCounterLength bytes) must already
// have been checked by the caller; InsertLine itself only rejects a missing
// name separator.
func (t *SlotTable) InsertLine(line []byte) {
	name, rest, ok := lexer.Name(line)
	if !ok {
		t.logInvalid(t.log.WithField("line", string(bytes.TrimRight(line, "\n"))), "invalid metric: no name separator")
		return
	}
	slotIdx := t.findOrCreate(name)
	for _, g := range lexer.Groups(rest) {
		slotIdx = t.insertGroup(slotIdx, name, g)
	}
}

func (t *SlotTable) insertGroup(slotIdx int, name []byte, g lexer.Group) int {
	if g.Malformed() {
		t.logInvalid(t.log.WithField("group", string(g.Raw)), "invalid metric data: missing type separator")
		return slotIdx
	}

	kind := kindOther
	if g.IsCounter() {
		kind = kindCounter
	}

	s := &t.slots[slotIdx]
	if s.kind == kindUnknown {
		s.kind = kind
	} else if s.kind != kind {
		t.logInvalid(t.log.WithField("name", string(name)), "got improper metric type for existing slot")
		return slotIdx
	}

	predicted := len(g.Raw)
	if kind == kindCounter {
		predicted = MaxCounterLength
	}
	if t.accounting+predicted > MTU {
		t.onOverflow()
		slotIdx = t.addSlot(name)
		t.slots[slotIdx].kind = kind
		s = &t.slots[slotIdx]
	}

	if kind == kindCounter {
		t.insertCounter(s, g)
	} else {
		t.insertOther(s, g)
	}
	return slotIdx
}

func (t *SlotTable) insertCounter(s *slot, g lexer.Group) {
	value, err := strconv.ParseFloat(string(g.Value), 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		t.logInvalid(t.log.WithField("value", string(g.Value)), "invalid value in counter data")
		return
	}

	sampleRate := 1.0
	if g.Rate != nil {
		if parsed, err := strconv.ParseFloat(string(g.Rate), 64); err == nil && !math.IsInf(parsed, 0) && !math.IsNaN(parsed) {
			sampleRate = parsed
		}
	}

	s.counter += value / sampleRate
	payload := strconv.AppendFloat(nil, s.counter, 'g', 15, 64)
	payload = append(payload, '|', 'c', '\n')

	t.accounting -= s.length
	copy(s.buf[s.nameLen:], payload)
	s.length = s.nameLen + len(payload)
	t.accounting += s.length
}

func (t *SlotTable) insertOther(s *slot, g lexer.Group) {
	n := copy(s.buf[s.length:], g.Raw)
	s.buf[s.length+n-1] = ':' // rewritten to '\n' again by the packer at flush time
	s.length += n
	t.accounting += n
}
