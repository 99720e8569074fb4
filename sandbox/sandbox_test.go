package sandbox

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultLog collects reported faults for assertions.
type faultLog struct {
	kinds []FaultKind
	msgs  []string
	dumps [][]string
}

func newTestSandbox(t *testing.T, capacity int) (*Sandbox, *faultLog) {
	t.Helper()
	fl := &faultLog{}
	s := New(Config{
		Capacity: capacity,
		Log:      zerolog.Nop(),
		Hooks: Hooks{
			Active: func() bool { return true },
			Fault: func(kind FaultKind, msg string, expected bool) int {
				fl.kinds = append(fl.kinds, kind)
				fl.msgs = append(fl.msgs, msg)
				return 0
			},
			Dump: func(level int, rows []string) {
				fl.dumps = append(fl.dumps, rows)
			},
		},
	})
	s.Reset(true)
	return s, fl
}

func (f *faultLog) has(kind FaultKind) bool {
	for _, k := range f.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestAllocFreeRoundtrip(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(16)
	require.NotEqual(t, NullPtr, p)

	payload := s.Bytes(p, 16)
	for _, b := range payload {
		assert.EqualValues(t, 'N', b, "fresh payload carries the alloc fill")
	}

	copy(payload, "hello")
	s.Free(p)

	for _, b := range s.Bytes(p, 16) {
		assert.EqualValues(t, 'F', b, "released payload carries the free fill")
	}

	s.FinalChecks()
	assert.Empty(t, fl.kinds)
	assert.Equal(t, 1, s.AllocCount())
	assert.Equal(t, 1, s.FreeCount())
}

func TestAllocPlacesFences(t *testing.T) {
	s, _ := newTestSandbox(t, 0)

	p := s.Alloc(8)
	require.NotEqual(t, NullPtr, p)

	prefix := s.Bytes(p-FenceSize, FenceSize)
	suffix := s.Bytes(p+8, FenceSize)
	for i := 0; i < FenceSize; i++ {
		assert.EqualValues(t, 'b', prefix[i])
		assert.EqualValues(t, 'e', suffix[i])
	}
}

func TestAllocZeroSizeReturnsNull(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	assert.Equal(t, NullPtr, s.Alloc(0))
	assert.Equal(t, NullPtr, s.Alloc(-4))
	assert.Empty(t, fl.kinds)
	assert.Zero(t, s.AllocCount())
}

func TestLeakDetected(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	s.Alloc(16)
	s.FinalChecks()

	assert.True(t, fl.has(FaultLeak))
	assert.True(t, fl.has(FaultCountMismatch))
	assert.True(t, s.Faulted())
}

func TestDoubleFreeDetected(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(8)
	s.Free(p)
	s.Free(p)

	assert.True(t, fl.has(FaultDoubleFree))
}

func TestOverrunDetectedOnFree(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(8)
	s.Bytes(p, 9)[8] = 0 // stomp the suffix fence
	s.Free(p)

	assert.True(t, fl.has(FaultBrokenFence))
	assert.NotEmpty(t, fl.dumps, "a fence fault dumps the block")
}

func TestOverrunDetectedAtFinalChecks(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(8)
	s.Bytes(p, 9)[8] = 0
	s.FinalChecks()

	assert.True(t, fl.has(FaultOverrun))
}

func TestUseAfterFreeDetected(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(8)
	s.Free(p)
	s.Bytes(p, 8)[3] = 'x'
	s.FinalChecks()

	assert.True(t, fl.has(FaultUseAfterFree))
}

func TestInvalidFrees(t *testing.T) {
	s, fl := newTestSandbox(t, 0)
	s.Alloc(8)

	s.Free(Ptr(3)) // inside a fence, not a payload start
	assert.True(t, fl.has(FaultInvalidPtr))

	fl.kinds = nil
	s.Free(Ptr(s.Capacity() + 100))
	assert.True(t, fl.has(FaultInvalidPtr))

	// free(NULL) stays a no-op
	fl.kinds = nil
	s.Free(NullPtr)
	assert.Empty(t, fl.kinds)
}

func TestForcedFailureSingleShot(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	s.FailNext()
	assert.Equal(t, NullPtr, s.Alloc(8))
	assert.Equal(t, 1, s.ForcedFailures())
	assert.False(t, s.ArmedUnfired())

	p := s.Alloc(8)
	assert.NotEqual(t, NullPtr, p)
	s.Free(p)

	s.FinalChecks()
	assert.Empty(t, fl.kinds, "a forced failure is not itself a fault")
}

func TestForcedFailureAll(t *testing.T) {
	s, _ := newTestSandbox(t, 0)

	s.FailAll()
	assert.Equal(t, NullPtr, s.Alloc(8))
	assert.Equal(t, NullPtr, s.Alloc(8))
	assert.Equal(t, 2, s.ForcedFailures())
}

func TestArmedUnfired(t *testing.T) {
	s, _ := newTestSandbox(t, 0)

	s.FailNext()
	assert.True(t, s.ArmedUnfired())
}

func TestOutOfSpaceUnmaskable(t *testing.T) {
	s, fl := newTestSandbox(t, 128)

	s.SetExpectFaults()
	p := s.Alloc(256)

	assert.Equal(t, NullPtr, p)
	assert.True(t, fl.has(FaultOutOfSpace))
	assert.False(t, s.Expecting(), "running out of arena clears the expectation")
	assert.Zero(t, s.AllocCount(), "a refused allocation does not count")
}

func TestCallocZeroes(t *testing.T) {
	s, _ := newTestSandbox(t, 0)

	p := s.Calloc(4, 8)
	require.NotEqual(t, NullPtr, p)
	for _, b := range s.Bytes(p, 32) {
		assert.EqualValues(t, 0, b)
	}
}

func TestReallocGrowsInPlace(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(8)
	copy(s.Bytes(p, 8), "12345678")

	np := s.Realloc(p, 16)
	assert.Equal(t, p, np, "the newest allocation resizes in place")
	assert.Equal(t, "12345678", string(s.Bytes(np, 8)))
	for _, b := range s.Bytes(np+8, 8) {
		assert.EqualValues(t, 'N', b, "grown region carries the alloc fill")
	}

	s.Free(np)
	s.FinalChecks()
	assert.Empty(t, fl.kinds)
}

func TestReallocGrowPastCapacity(t *testing.T) {
	s, fl := newTestSandbox(t, 128)

	p := s.Alloc(8)
	require.NotEqual(t, NullPtr, p)
	copy(s.Bytes(p, 8), "12345678")

	s.SetExpectFaults()
	np := s.Realloc(p, 4096)

	assert.Equal(t, NullPtr, np, "a grow that cannot fit is refused, not applied")
	assert.True(t, fl.has(FaultOutOfSpace))
	assert.False(t, s.Expecting(), "running out of arena clears the expectation")

	// The original allocation survives a failed grow.
	assert.Equal(t, "12345678", string(s.Bytes(p, 8)))
	suffix := s.Bytes(p+8, FenceSize)
	for i := range suffix {
		assert.EqualValues(t, 'e', suffix[i])
	}
}

func TestReallocShrinksInPlace(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p := s.Alloc(16)
	np := s.Realloc(p, 8)
	assert.Equal(t, p, np)

	suffix := s.Bytes(np+8, FenceSize)
	for i := range suffix {
		assert.EqualValues(t, 'e', suffix[i], "the fence moves to the new end")
	}

	s.Free(np)
	s.FinalChecks()
	assert.Empty(t, fl.kinds)
}

func TestReallocMovesOlderBlock(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	p1 := s.Alloc(8)
	copy(s.Bytes(p1, 8), "abcdefgh")
	p2 := s.Alloc(8)

	np := s.Realloc(p1, 24)
	require.NotEqual(t, NullPtr, np)
	assert.NotEqual(t, p1, np, "an older block cannot grow in place")
	assert.Equal(t, "abcdefgh", string(s.Bytes(np, 8)))

	s.Free(p2)
	s.Free(np)
	s.FinalChecks()
	assert.Empty(t, fl.kinds)
}

func TestReallocNullIsAlloc(t *testing.T) {
	s, _ := newTestSandbox(t, 0)

	p := s.Realloc(NullPtr, 8)
	assert.NotEqual(t, NullPtr, p)
	assert.Equal(t, 1, s.AllocCount())
}

func TestBarrierBreakDetected(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	s.buf[2] = 0 // stomp the leading barrier directly
	s.FinalChecks()

	assert.True(t, fl.has(FaultBarrier))
}

func TestResetClearsPriorState(t *testing.T) {
	s, fl := newTestSandbox(t, 0)

	s.Alloc(16)
	s.FailNext()
	s.SetExpectFaults()

	s.Reset(true)

	assert.Zero(t, s.AllocCount())
	assert.False(t, s.Expecting())
	assert.False(t, s.ArmedUnfired())
	s.FinalChecks()
	assert.Empty(t, fl.kinds)

	for _, b := range s.payload()[:64] {
		assert.EqualValues(t, 'X', b)
	}
}

func TestDisabledSandboxStillAllocates(t *testing.T) {
	s, fl := newTestSandbox(t, 0)
	s.Reset(false)

	p := s.Alloc(8)
	require.NotEqual(t, NullPtr, p)
	s.Bytes(p, 8)[0] = 1
	s.Free(p)
	s.FinalChecks()

	assert.Empty(t, fl.kinds, "nothing is validated while disabled")
}

func TestFaultsIgnoredWhenInactive(t *testing.T) {
	fl := &faultLog{}
	s := New(Config{
		Log: zerolog.Nop(),
		Hooks: Hooks{
			Active: func() bool { return false },
			Fault: func(kind FaultKind, msg string, expected bool) int {
				fl.kinds = append(fl.kinds, kind)
				return 0
			},
		},
	})
	s.Reset(true)

	p := s.Alloc(8)
	s.Free(p)
	s.Free(p)

	assert.Empty(t, fl.kinds)
	assert.False(t, s.Faulted())
}
