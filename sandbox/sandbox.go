// Package sandbox emulates a general-purpose allocator inside a private
// fixed-capacity arena, instrumented to catch allocation misuse: buffer
// overruns and underruns, writes after free, double releases, invalid
// pointers, leaks and alloc/free count mismatches. It also supports
// forcing future allocations to fail so tests can exercise a subject's
// error-handling paths.
//
// The arena is laid out as [barrier][payload region][barrier]. Every
// allocation inside the payload region is bracketed by fences:
// [fence 'b' ×7][payload][fence 'e' ×7]. Freshly allocated bytes are
// filled with 'N', freed bytes with 'F', and the untouched region with
// 'X', so reads of each category are distinguishable from zeroed memory.
package sandbox

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	// FenceSize is the width of the sentinel fences bracketing each
	// allocation's payload.
	FenceSize = 7
	// BarrierSize is the width of the sentinel regions bracketing the
	// whole arena.
	BarrierSize = 16
	// DefaultCapacity is the default usable payload space, excluding
	// fences between allocations.
	DefaultCapacity = 4096

	fencePrefixByte = 'b'
	fenceSuffixByte = 'e'
	barrierByte     = 0xFF
	resetByte       = 'X' // arena bytes no allocation has touched
	allocByte       = 'N' // freshly allocated, uninitialized payload
	freedByte       = 'F' // payload of a released allocation
)

// Ptr is an allocation handle: the offset of a payload's first byte
// within the arena's payload region. The zero value is the null pointer;
// offset zero always falls inside the first allocation's prefix fence,
// so no valid handle collides with it.
type Ptr int

// NullPtr is the empty allocation handle.
const NullPtr Ptr = 0

// FaultKind classifies a detected memory fault.
type FaultKind string

const (
	FaultOverrun       FaultKind = "overrun"
	FaultBrokenFence   FaultKind = "broken_fence"
	FaultUseAfterFree  FaultKind = "use_after_free"
	FaultDoubleFree    FaultKind = "double_free"
	FaultInvalidPtr    FaultKind = "invalid_pointer"
	FaultLeak          FaultKind = "leak"
	FaultCountMismatch FaultKind = "count_mismatch"
	FaultOutOfSpace    FaultKind = "out_of_space"
	FaultBarrier       FaultKind = "barrier_broken"
)

// Record tracks one allocation: the offset of its prefix fence within
// the payload region, the requested payload size, and whether it has
// been released. Records are appended in ascending offset order because
// the arena is a bump allocator, which is what makes lookup by binary
// search valid.
type Record struct {
	Size  int
	Block int
	Free  bool
}

type failMode int

const (
	failNormal failMode = iota
	failExpected
	failOnce
	failAlways
)

// Hooks connect the sandbox to the run that owns it. Active reports
// whether a test is currently mid-execution; faults are only recorded
// against an active test. Fault is invoked for every detected fault and
// returns the indentation level to use for a follow-up dump, or zero
// when the fault is expected and nothing was printed. Dump receives
// formatted arena rows.
type Hooks struct {
	Active func() bool
	Fault  func(kind FaultKind, msg string, expected bool) int
	Dump   func(level int, rows []string)
}

// Config holds sandbox construction parameters.
type Config struct {
	Capacity int
	Log      zerolog.Logger
	Hooks    Hooks
}

// Sandbox is a fixed-capacity arena allocator with corruption detection.
// It is reset between test passes; all state is scoped to the current
// pass.
type Sandbox struct {
	capacity int
	buf      []byte // barrier + payload region + barrier
	next     int    // bump offset of the next free payload-region byte
	records  []Record

	allocs         int
	frees          int
	forcedFailures int
	mode           failMode
	expectFault    bool
	faulted        bool
	enabled        bool

	loose []byte // backing store when checking is disabled

	hooks Hooks
	log   zerolog.Logger
}

// New creates a sandbox with the given payload capacity. The sandbox is
// disabled until the first Reset.
func New(cfg Config) *Sandbox {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Hooks.Active == nil {
		cfg.Hooks.Active = func() bool { return false }
	}
	if cfg.Hooks.Fault == nil {
		cfg.Hooks.Fault = func(FaultKind, string, bool) int { return 0 }
	}
	if cfg.Hooks.Dump == nil {
		cfg.Hooks.Dump = func(int, []string) {}
	}
	return &Sandbox{
		capacity: cfg.Capacity,
		buf:      make([]byte, cfg.Capacity+2*BarrierSize),
		hooks:    cfg.Hooks,
		log:      cfg.Log,
	}
}

// Capacity returns the usable payload space of the arena.
func (s *Sandbox) Capacity() int { return s.capacity }

// Enabled reports whether allocation checking is active.
func (s *Sandbox) Enabled() bool { return s.enabled }

// payload returns the checked payload region between the two barriers.
func (s *Sandbox) payload() []byte {
	return s.buf[BarrierSize : BarrierSize+s.capacity]
}

// Reset prepares the sandbox for a new test pass. With enable false the
// sandbox degrades to an untracked growable buffer: allocations still
// hand out memory but nothing is validated.
func (s *Sandbox) Reset(enable bool) {
	s.allocs = 0
	s.frees = 0
	s.forcedFailures = 0
	s.mode = failNormal
	s.expectFault = false
	s.faulted = false
	s.next = 0
	s.records = s.records[:0]
	s.enabled = enable
	if !enable {
		s.loose = s.loose[:0]
		return
	}
	for i := 0; i < BarrierSize; i++ {
		s.buf[i] = barrierByte
		s.buf[BarrierSize+s.capacity+i] = barrierByte
	}
	fill(s.payload(), resetByte)
}

// Alloc reserves size bytes in the arena and returns a handle to the
// payload start, or NullPtr when size is zero, a fault is armed, or the
// arena is out of space.
func (s *Sandbox) Alloc(size int) Ptr {
	if !s.enabled {
		return s.looseAlloc(size)
	}
	if size <= 0 {
		return NullPtr
	}
	if s.mode >= failOnce {
		if s.mode == failOnce {
			s.mode = failExpected
		}
		s.forcedFailures++
		return NullPtr
	}

	next := s.next + 2*FenceSize + size
	if next >= s.capacity-2*FenceSize {
		// Out-of-space is never maskable by an expectation.
		s.expectFault = false
		s.report(FaultOutOfSpace, fmt.Sprintf(
			"malloc: ran out of test memory space! Increase limit from %d bytes.", s.capacity), nil)
		return NullPtr
	}

	s.allocs++

	// Check the previous allocation's suffix fence before building on
	// top of it, so silent corruption surfaces as early as possible.
	if s.next != 0 {
		mem := s.payload()
		for off := s.next - FenceSize; off < s.next; off++ {
			if mem[off] != fenceSuffixByte {
				s.report(FaultBrokenFence, "malloc: preceding fence broken", s.lastRecord())
				return NullPtr
			}
		}
	}

	rec := Record{Size: size, Block: s.next}
	s.records = append(s.records, rec)

	mem := s.payload()
	start := rec.Block + FenceSize
	fill(mem[rec.Block:start], fencePrefixByte)
	fill(mem[start:start+size], allocByte)
	fill(mem[start+size:start+size+FenceSize], fenceSuffixByte)

	s.next = next

	return Ptr(start)
}

// Calloc reserves count*elemSize bytes and zeroes the payload.
func (s *Sandbox) Calloc(count, elemSize int) Ptr {
	if !s.enabled {
		p := s.looseAlloc(count * elemSize)
		if p != NullPtr {
			fill(s.loose[int(p):int(p)+count*elemSize], 0)
		}
		return p
	}
	p := s.Alloc(count * elemSize)
	if p == NullPtr {
		return NullPtr
	}
	fill(s.payload()[int(p):int(p)+count*elemSize], 0)
	return p
}

// Free releases an allocation. Releasing NullPtr is a no-op; everything
// else that is not exactly a live handle returned by Alloc is reported
// as a fault. Detected faults do not abort the release so that every
// problem with the call is surfaced.
func (s *Sandbox) Free(p Ptr) {
	if !s.enabled || p == NullPtr {
		return
	}

	if int(p) < 0 || int(p) >= s.capacity {
		tmp := &Record{Block: int(p) - FenceSize, Size: BarrierSize - 2*FenceSize, Free: true}
		s.report(FaultInvalidPtr, "free: invalid pointer, out of bounds", tmp)
		return
	}

	rec := s.lookup(p)
	if rec == nil {
		tmp := &Record{Block: int(p) - FenceSize, Size: BarrierSize - 2*FenceSize, Free: true}
		s.report(FaultInvalidPtr, "free: invalid pointer, not an allocation result", tmp)
		return
	}

	if rec.Free {
		s.report(FaultDoubleFree, "free: pointer already freed", nil)
	}
	if !s.checkFence(rec) {
		s.report(FaultBrokenFence, "free: broken fence", rec)
	}

	start := rec.Block + FenceSize
	fill(s.payload()[start:start+rec.Size], freedByte)
	rec.Free = true
	s.frees++
}

// Realloc resizes an allocation. Only the most recent record can be
// resized in place; the bump arena cannot compact, so anything else
// falls back to allocate-copy-release.
func (s *Sandbox) Realloc(p Ptr, size int) Ptr {
	if !s.enabled {
		return s.looseRealloc(p, size)
	}
	if p == NullPtr {
		return s.Alloc(size)
	}

	if len(s.records) > 0 {
		last := s.lastRecord()

		if s.mode >= failOnce {
			if s.mode == failOnce {
				s.mode = failExpected
			}
			s.forcedFailures++
			return NullPtr
		}

		if last.Block+FenceSize == int(p) {
			if !s.checkFence(last) {
				s.report(FaultBrokenFence, "realloc: broken fence", last)
				return NullPtr
			}
			if size == last.Size {
				return p
			}

			mem := s.payload()
			start := last.Block + FenceSize

			if size > last.Size {
				if start+size+FenceSize >= s.capacity-2*FenceSize {
					// Out-of-space is never maskable by an expectation.
					s.expectFault = false
					s.report(FaultOutOfSpace, fmt.Sprintf(
						"realloc: ran out of test memory space! Increase limit from %d bytes.", s.capacity), nil)
					return NullPtr
				}
				fill(mem[start+size:start+size+FenceSize], fenceSuffixByte)
				fill(mem[start+last.Size:start+size], allocByte)
			} else {
				fill(mem[start+size:start+size+FenceSize], fenceSuffixByte)
				fill(mem[start+size+FenceSize:start+last.Size+FenceSize], resetByte)
			}

			last.Size = size
			s.next = start + size + FenceSize
			return p
		}
	}

	if len(s.records) == 0 {
		s.report(FaultInvalidPtr, "realloc: nothing previously allocated", nil)
		return s.Alloc(size)
	}

	old := s.lookup(p)
	if old == nil {
		s.report(FaultInvalidPtr, "realloc: invalid pointer, not an allocation result", nil)
		return s.Alloc(size)
	}

	np := s.Alloc(size)
	if np == NullPtr {
		s.report(FaultOutOfSpace, "realloc: malloc failed in realloc", nil)
		return NullPtr
	}
	// lookup again: the append in Alloc may have moved the record slice
	old = s.lookup(p)

	// Move semantics: copy the old payload, clamped to the new size so
	// the fresh fences survive a shrink.
	mem := s.payload()
	n := old.Size
	if n > size {
		n = size
	}
	start := old.Block + FenceSize
	copy(mem[int(np):int(np)+n], mem[start:start+n])
	s.Free(p)
	return np
}

// FailNext arms a single-shot allocation failure. The next Alloc,
// Calloc or Realloc returns NullPtr and disarms the fault.
func (s *Sandbox) FailNext() { s.mode = failOnce }

// FailAll forces every remaining allocation in the test to fail.
func (s *Sandbox) FailAll() { s.mode = failAlways }

// ArmedUnfired reports whether a forced failure was requested but no
// allocation ever attempted to trigger it. This indicates a malformed
// test rather than a memory fault.
func (s *Sandbox) ArmedUnfired() bool {
	return s.mode >= failExpected && s.forcedFailures == 0
}

// SetExpectFaults inverts the meaning of the sticky fault flag for the
// current test.
func (s *Sandbox) SetExpectFaults() { s.expectFault = true }

// Expecting reports whether the current test declared it expects faults.
func (s *Sandbox) Expecting() bool { return s.expectFault }

// Faulted reports whether any memory fault was detected this test.
func (s *Sandbox) Faulted() bool { return s.faulted }

// AllocCount returns the number of successful allocations this test.
func (s *Sandbox) AllocCount() int { return s.allocs }

// FreeCount returns the number of successful releases this test.
func (s *Sandbox) FreeCount() int { return s.frees }

// ForcedFailures returns how many allocations were failed on purpose.
func (s *Sandbox) ForcedFailures() int { return s.forcedFailures }

// Bytes returns a window of n bytes into the arena starting at the
// given payload handle. The window is deliberately unchecked: code
// under test can read and write past its allocation exactly as a stray
// pointer would, which is what the fences are there to catch.
func (s *Sandbox) Bytes(p Ptr, n int) []byte {
	if !s.enabled {
		return s.loose[int(p) : int(p)+n]
	}
	off := BarrierSize + int(p)
	return s.buf[off : off+n]
}

// FinalChecks validates the whole arena at end of test: fences intact,
// freed payloads untouched since release, no live records left, both
// barriers unmodified, and alloc/free parity.
func (s *Sandbox) FinalChecks() {
	if !s.enabled {
		return
	}

	mem := s.payload()
	for i := range s.records {
		rec := &s.records[i]

		if !s.checkFence(rec) {
			s.report(FaultOverrun, "after: detected buffer over/underrun", rec)
		}

		if rec.Free {
			start := rec.Block + FenceSize
			for _, b := range mem[start : start+rec.Size] {
				if b != freedByte {
					s.report(FaultUseAfterFree, "after: memory modified after free", rec)
					break
				}
			}
		} else {
			s.report(FaultLeak, "after: allocated memory not freed", rec)
		}
	}

	for i := 0; i < BarrierSize; i++ {
		if s.buf[i] != barrierByte || s.buf[BarrierSize+s.capacity+i] != barrierByte {
			s.report(FaultBarrier, "after: primary barrier broken (large overrun)", nil)
			break
		}
	}

	if s.allocs != s.frees {
		s.report(FaultCountMismatch, fmt.Sprintf(
			"after: mismatched malloc/free calls (mallocs: %d, frees: %d)", s.allocs, s.frees), nil)
	}
}

// report records a fault against the active test and emits it through
// the hooks unless the test declared it expects faults.
func (s *Sandbox) report(kind FaultKind, msg string, rec *Record) {
	s.log.Debug().Str("kind", string(kind)).Bool("active", s.hooks.Active()).Msg(msg)
	if !s.hooks.Active() {
		return
	}
	level := s.hooks.Fault(kind, msg, s.expectFault)
	if !s.expectFault && rec != nil {
		s.hooks.Dump(level+1, s.recordRows(rec))
	}
	s.faulted = true
}

// checkFence verifies both fences of a record.
func (s *Sandbox) checkFence(rec *Record) bool {
	mem := s.payload()
	for i := 0; i < FenceSize; i++ {
		if mem[rec.Block+i] != fencePrefixByte {
			return false
		}
		if mem[rec.Block+FenceSize+rec.Size+i] != fenceSuffixByte {
			return false
		}
	}
	return true
}

// lookup finds the record whose payload starts exactly at p, using
// binary search over the ascending record list.
func (s *Sandbox) lookup(p Ptr) *Record {
	lo, hi := 0, len(s.records)
	for lo < hi {
		mid := (lo + hi) / 2
		start := s.records[mid].Block + FenceSize
		switch {
		case start == int(p):
			return &s.records[mid]
		case start < int(p):
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return nil
}

func (s *Sandbox) lastRecord() *Record {
	if len(s.records) == 0 {
		return nil
	}
	return &s.records[len(s.records)-1]
}

// looseAlloc backs allocations when checking is disabled: a plain
// growable buffer with the same uninitialized fill, so code under test
// behaves identically either way.
func (s *Sandbox) looseAlloc(size int) Ptr {
	if size <= 0 {
		return NullPtr
	}
	if len(s.loose) == 0 {
		// burn offset zero so NullPtr stays unambiguous
		s.loose = append(s.loose, 0)
	}
	p := Ptr(len(s.loose))
	for i := 0; i < size; i++ {
		s.loose = append(s.loose, resetByte)
	}
	return p
}

func (s *Sandbox) looseRealloc(p Ptr, size int) Ptr {
	if p == NullPtr {
		return s.looseAlloc(size)
	}
	np := s.looseAlloc(size)
	if np != NullPtr {
		copy(s.loose[int(np):int(np)+size], s.loose[int(p):])
	}
	return np
}

func fill(b []byte, c byte) {
	for i := range b {
		b[i] = c
	}
}
