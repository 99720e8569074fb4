package sandbox

import (
	"fmt"
	"strings"
)

// LogBlock emits a hex dump for the block containing p through the Dump
// hook. A handle that exactly matches a tracked allocation dumps the
// whole block including its fences; any other offset dumps three rows
// of sixteen bytes centered on the requested position.
func (s *Sandbox) LogBlock(level int, p Ptr) {
	if !s.enabled {
		return
	}
	if rec := s.lookup(p); rec != nil {
		s.hooks.Dump(level, s.recordRows(rec))
		return
	}
	rows := []string{
		s.row(int(p)-16, false),
		s.row(int(p), true),
		s.row(int(p)+16, false),
	}
	s.hooks.Dump(level, rows)
}

// recordRows renders an allocation's full block, sixteen bytes per row,
// starting one row before the payload so the prefix fence and its
// neighborhood are visible. The row holding the payload start is marked.
func (s *Sandbox) recordRows(rec *Record) []string {
	var rows []string
	for i := 0; i < rec.Size+FenceSize+16; i += 16 {
		off := rec.Block + FenceSize + i - 16
		rows = append(rows, s.row(off, i == 16))
	}
	return rows
}

// row formats sixteen bytes at the given payload-region offset as hex
// plus printable characters. Bytes outside the arena render as "xx".
func (s *Sandbox) row(off int, target bool) string {
	var b strings.Builder
	abs := BarrierSize + off

	fmt.Fprintf(&b, "0x%08X", abs)
	if target {
		b.WriteString("-> ")
	} else {
		b.WriteString(":  ")
	}

	for i := 0; i < 16; i++ {
		if abs+i >= 0 && abs+i < len(s.buf) {
			fmt.Fprintf(&b, "%02X ", s.buf[abs+i])
		} else {
			b.WriteString("xx ")
		}
	}

	if target {
		b.WriteString("= ")
	} else {
		b.WriteString("- ")
	}

	for i := 0; i < 16; i++ {
		if abs+i >= 0 && abs+i < len(s.buf) {
			c := s.buf[abs+i]
			if c <= 0x1F || c >= 0x7F {
				c = '.'
			}
			b.WriteByte(c)
		} else {
			b.WriteByte(' ')
		}
	}

	return b.String()
}
