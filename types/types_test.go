package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	tests := []struct {
		in   string
		want Verbosity
	}{
		{"", VerbosityQuiet},
		{"quiet", VerbosityQuiet},
		{"none", VerbosityQuiet},
		{"notes", VerbosityNotes},
		{"run", VerbosityRun},
		{"verbose", VerbosityRun},
		{"all", VerbosityAll},
	}
	for _, tc := range tests {
		got, err := ParseVerbosity(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseVerbosity("shouty")
	assert.Error(t, err)
}

func TestVerbosityRoundTrip(t *testing.T) {
	for _, v := range []Verbosity{VerbosityQuiet, VerbosityNotes, VerbosityRun, VerbosityAll} {
		got, err := ParseVerbosity(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestRunStats(t *testing.T) {
	s := RunStats{Total: 4, Passed: 3, Skipped: 2}

	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 75, s.PassRate())
	assert.Equal(t, TestStatusFail, s.Status())

	s.Passed = 4
	assert.Equal(t, TestStatusPass, s.Status())
	assert.Equal(t, 100, s.PassRate())
}

func TestRunStatsEmpty(t *testing.T) {
	var s RunStats

	assert.Zero(t, s.Failed())
	assert.Zero(t, s.PassRate())
	assert.Equal(t, TestStatusSkip, s.Status(), "a run that executed nothing is a skip, not a pass")
}
