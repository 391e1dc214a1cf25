package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/statsd-relay/internal/fixtures"
	"github.com/relaycore/statsd-relay/internal/lexer"
)

func newTestTable(t *testing.T) (*SlotTable, *int) {
	flushes := 0
	var table *SlotTable
	table = NewSlotTable(fixtures.NewTestLogger(t), func() {
		flushes++
		table.Reset()
	})
	return table, &flushes
}

func insertLines(table *SlotTable, datagram string) {
	for _, line := range lexer.Lines([]byte(datagram)) {
		table.InsertLine(line)
	}
}

func TestCounterAggregation(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "a:1|c\na:2|c\n")

	require.Equal(t, 1, table.Used())
	name, payload, hasSamples := table.Slot(0)
	assert.Equal(t, "a:", string(name))
	assert.True(t, hasSamples)
	assert.Equal(t, "3|c\n", string(payload))
}

func TestCounterWithRate(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "m:5|c|@0.5\n")

	_, payload, _ := table.Slot(0)
	assert.Equal(t, "10|c\n", string(payload))
}

func TestCounterRateDefaultsToOneWhenUnparseable(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "m:4|c|@bogus\n")

	_, payload, _ := table.Slot(0)
	assert.Equal(t, "4|c\n", string(payload))
}

func TestOtherAppendedVerbatimWithColonSeparator(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "t:250|ms\nt:300|ms\n")

	require.Equal(t, 1, table.Used())
	name, payload, _ := table.Slot(0)
	assert.Equal(t, "t:", string(name))
	// the packer rewrites the final ':' to '\n' at flush time; before that
	// the slot buffer keeps ':' as the inter-group separator.
	assert.Equal(t, "250|ms:300|ms:", string(payload))
}

func TestConflictingTypeRejected(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "a:1|c\na:2|ms\n")

	require.Equal(t, 1, table.Used())
	_, payload, _ := table.Slot(0)
	assert.Equal(t, "1|c\n", string(payload))
}

func TestMalformedGroupSkippedWithoutPoisoningSlot(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "a:1|c:nopipe:2|c\n")

	_, payload, _ := table.Slot(0)
	assert.Equal(t, "3|c\n", string(payload))
}

func TestFindOrCreateSchedulesFlushOnNameOverflow(t *testing.T) {
	t.Parallel()
	table, flushes := newTestTable(t)
	// accounting starts at 0; force it near MTU so the next distinct name
	// alone pushes accounting over the edge.
	table.accounting = MTU - 1

	insertLines(table, "x:1|c\n")

	assert.Equal(t, 1, *flushes)
	require.Equal(t, 1, table.Used())
	name, _, _ := table.Slot(0)
	assert.Equal(t, "x:", string(name))
}

func TestMidLineOverflowRetriesInFreshSlotSameNameAndType(t *testing.T) {
	t.Parallel()
	table, flushes := newTestTable(t)
	insertLines(table, "a:1|c\n")
	table.accounting = MTU - 1 // force the next counter group to overflow

	table.insertGroup(0, []byte("a:"), lexer.Groups([]byte("2|c\n"))[0])

	assert.Equal(t, 1, *flushes)
	require.Equal(t, 1, table.Used())
	_, payload, _ := table.Slot(0)
	assert.Equal(t, "2|c\n", string(payload))
}

func TestAccountingInvariant(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	insertLines(table, "a:1|c\nb:250|ms\n")

	sum := 0
	for i := 0; i < table.Used(); i++ {
		name, payload, _ := table.Slot(i)
		sum += len(name) + len(payload)
	}
	assert.Equal(t, sum, table.Accounting())
}
