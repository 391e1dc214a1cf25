// Package lexer splits a raw StatsD datagram into its newline-terminated
// lines, and a line's value section into its colon-separated value groups.
package lexer

import "bytes"

// Lines splits a raw datagram into newline-terminated lines. If the datagram
// does not end with '\n' one is assumed, matching the wire protocol's "a
// trailing newline is optional" rule, but no byte is appended to buf: the
// final, unterminated fragment (if non-empty) is still returned as a line.
//
// The returned slices alias buf; callers must not retain buf past the
// call that reuses its backing storage.
func Lines(buf []byte) [][]byte {
	var lines [][]byte
	for len(buf) > 0 {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			lines = append(lines, buf)
			break
		}
		lines = append(lines, buf[:idx+1])
		buf = buf[idx+1:]
	}
	return lines
}

// Name returns the metric name (including its terminating ':') and the
// remainder of the line holding the value groups. ok is false if the line
// has no ':'.
func Name(line []byte) (name, rest []byte, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return nil, nil, false
	}
	return line[:idx+1], line[idx+1:], true
}

// Group is one `value|type[|@rate]` segment of a line's value section.
type Group struct {
	// Raw is the group's original bytes, including its trailing separator
	// (':' between groups, or the line's own terminator on the last group).
	Raw   []byte
	Value []byte
	Type  []byte
	Rate  []byte // text after "|@" (not checked to be numeric), nil if absent
}

// Groups splits a line's value section (as returned by Name) on ':' into
// its component value groups. A group without a '|' is malformed; callers
// should log and skip it (Malformed reports this).
func Groups(rest []byte) []Group {
	var groups []Group
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, ':')
		var raw []byte
		if end < 0 {
			raw = rest
			rest = nil
		} else {
			raw = rest[:end+1]
			rest = rest[end+1:]
		}
		groups = append(groups, parseGroup(raw))
	}
	return groups
}

func parseGroup(raw []byte) Group {
	g := Group{Raw: raw}

	// The group's own separator (':' mid-line, or the line's trailing
	// character on the last group) is not part of the value/type/rate text.
	body := raw
	if n := len(body); n > 0 {
		body = body[:n-1]
	}

	pipe := bytes.IndexByte(body, '|')
	if pipe < 0 {
		return g
	}
	g.Value = body[:pipe]
	afterPipe := body[pipe+1:]
	if typeEnd := bytes.IndexByte(afterPipe, '|'); typeEnd >= 0 {
		g.Type = afterPipe[:typeEnd]
		tail := afterPipe[typeEnd+1:]
		if len(tail) > 0 && tail[0] == '@' {
			g.Rate = tail[1:]
		}
	} else {
		g.Type = afterPipe
	}
	return g
}

// IsCounter reports whether a group's type tag begins with 'c'. Only the
// first character is significant, matching the wire format's single-letter
// type tags.
func (g Group) IsCounter() bool {
	return len(g.Type) > 0 && g.Type[0] == 'c'
}

// Malformed reports whether the group had no '|' separator at all.
func (g Group) Malformed() bool {
	return g.Value == nil && g.Type == nil
}
