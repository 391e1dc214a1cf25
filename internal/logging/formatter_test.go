package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIncludesTimestampLevelAndMessage(t *testing.T) {
	t.Parallel()
	f := NewLineFormatter()
	entry := &logrus.Entry{
		Time:    time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
		Level:   logrus.ErrorLevel,
		Message: "invalid value in counter data",
		Data:    logrus.Fields{"value": "nan"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "ERROR invalid value in counter data")
	assert.Contains(t, line, "value=nan")
	assert.Contains(t, line, entry.Time.Local().Format(timestampFormat))
}

func TestFormatReusesBufferAcrossCalls(t *testing.T) {
	t.Parallel()
	f := NewLineFormatter()
	entry := &logrus.Entry{Time: time.Now(), Level: logrus.InfoLevel, Message: "first"}
	first, err := f.Format(entry)
	require.NoError(t, err)

	entry.Message = "second"
	second, err := f.Format(entry)
	require.NoError(t, err)

	assert.Contains(t, string(first), "first")
	assert.Contains(t, string(second), "second")
	assert.NotContains(t, string(second), "first")
}
