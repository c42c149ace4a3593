package cliutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MergedSingleDashFlags(t *testing.T) {
	opts, err := Parse([]string{"-aPAYROLL", "-b20260102030405", "-s10", "-e90", "-d", "-r",
		"-p2026-01-02 03:04:05", "-tAUTO", "-x", "config.cfg"})
	require.NoError(t, err)

	assert.Equal(t, "PAYROLL", opts.Alias)
	assert.Equal(t, "20260102030405", opts.BatchNumber)
	assert.Equal(t, "10", opts.StartMilestone)
	assert.Equal(t, "90", opts.EndMilestone)
	assert.True(t, opts.Debug)
	assert.True(t, opts.Resurrect)
	assert.Equal(t, "2026-01-02 03:04:05", opts.ProcessDate)
	assert.Equal(t, BatchTypeAuto, opts.BatchType)
	assert.True(t, opts.TestMode)
	assert.Equal(t, "config.cfg", opts.ConfigFile)
}

func TestParse_BatchTypeIsCaseInsensitive(t *testing.T) {
	opts, err := Parse([]string{"-tmanual", "config.cfg"})
	require.NoError(t, err)
	assert.Equal(t, BatchTypeManual, opts.BatchType)
}

func TestParse_InvalidBatchTypeIsAnError(t *testing.T) {
	_, err := Parse([]string{"-tBOGUS", "config.cfg"})
	assert.Error(t, err)
}

func TestParse_UnrecognizedOptionIsAnError(t *testing.T) {
	_, err := Parse([]string{"-z", "config.cfg"})
	assert.Error(t, err)
}

func TestParse_MissingPositionalArgumentIsAnError(t *testing.T) {
	_, err := Parse([]string{"-d"})
	assert.Error(t, err)
}

func TestParse_TooManyPositionalArgumentsIsAnError(t *testing.T) {
	_, err := Parse([]string{"config.cfg", "extra.cfg"})
	assert.Error(t, err)
}

func TestParse_HelpShortCircuitsPositionalRequirement(t *testing.T) {
	opts, err := Parse([]string{"-h"})
	require.NoError(t, err)
	assert.True(t, opts.Help)
}

func TestParse_RunByCronDefaultsBatchTypeToAuto(t *testing.T) {
	t.Setenv("RUN_BY_CRON", "TRUE")
	opts, err := Parse([]string{"config.cfg"})
	require.NoError(t, err)
	assert.Equal(t, BatchTypeAuto, opts.BatchType)
}

func TestParse_ExplicitBatchTypeOverridesRunByCron(t *testing.T) {
	t.Setenv("RUN_BY_CRON", "TRUE")
	opts, err := Parse([]string{"-tMANUAL", "config.cfg"})
	require.NoError(t, err)
	assert.Equal(t, BatchTypeManual, opts.BatchType)
}

func TestUsage_MentionsEveryFlag(t *testing.T) {
	u := Usage()
	for _, flag := range []string{"-a<alias>", "-b<number>", "-s<n>", "-e<n>", "-d", "-r", "-p<date>", "-t<AUTO|MANUAL>", "-x", "-h"} {
		assert.Contains(t, u, flag)
	}
}
