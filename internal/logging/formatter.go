// Package logging implements the relay's line log format: a local
// timestamp, the level name, and the message, one line per event.
package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/relaycore/statsd-relay/pkg/pool"
)

const timestampFormat = "2006-01-02 15:04:05"

// LineFormatter renders a logrus.Entry as "<timestamp> <LEVEL> message
// key=value ...". It reuses a pooled *bytes.Buffer per call instead of
// allocating one, since a busy relay can log many lines per second.
type LineFormatter struct {
	bufs *pool.BytesBuffer
}

// NewLineFormatter creates a formatter with its own buffer pool.
func NewLineFormatter() *LineFormatter {
	return &LineFormatter{bufs: pool.NewBytesBuffer()}
}

// Format implements logrus.Formatter.
func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := f.bufs.Get()
	defer f.bufs.Put(buf)

	buf.WriteString(entry.Time.Local().Format(timestampFormat))
	buf.WriteByte(' ')
	buf.WriteString(strings.ToUpper(entry.Level.String()))
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	for k, v := range entry.Data {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteByte('=')
		fmt.Fprintf(buf, "%v", v)
	}
	buf.WriteByte('\n')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
