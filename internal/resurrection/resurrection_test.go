package resurrection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koyomi-batch/koyomi/internal/status"
)

func writeProcessAudit(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PAYROLL_ProcessAudit.log")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

var names = []string{"JobA", "JobB", "JobC"}
var preds = map[string][]string{"JobA": nil, "JobB": {"JobA"}, "JobC": {"JobB"}}

func TestEvaluate_NotRequestedIsInactive(t *testing.T) {
	plan, err := Evaluate(false, "/does/not/matter", names, preds)
	require.NoError(t, err)
	assert.False(t, plan.Active)
}

func TestEvaluate_MissingFileIsInactive(t *testing.T) {
	plan, err := Evaluate(true, filepath.Join(t.TempDir(), "missing.log"), names, preds)
	require.NoError(t, err)
	assert.False(t, plan.Active)
}

func TestEvaluate_AllSuccessfulShortCircuits(t *testing.T) {
	path := writeProcessAudit(t, ""+
		"20260102030405|1|JobA|SUCCESSFUL|s1|e1\n"+
		"20260102030405|1|JobB|SUCCESSFUL|s2|e2\n"+
		"20260102030405|1|JobC|SUCCESSFUL|s3|e3\n")

	plan, err := Evaluate(true, path, names, preds)
	require.NoError(t, err)
	assert.False(t, plan.Active, "LastRunSucceeded should short-circuit resurrection")
}

func TestEvaluate_PreservesSuccessfulAndReseedsRest(t *testing.T) {
	path := writeProcessAudit(t, ""+
		"20260102030405|1|JobA|SUCCESSFUL|s1|e1\n"+
		"20260102030405|1|JobB|FAILED|s2|e2\n")

	plan, err := Evaluate(true, path, names, preds)
	require.NoError(t, err)
	require.True(t, plan.Active)
	assert.Equal(t, "20260102030405", plan.BatchNumber)
	assert.Equal(t, 2, plan.RunNumber)

	byName := make(map[string]status.Record, len(plan.Seeds))
	for _, s := range plan.Seeds {
		byName[s.Name] = s
	}

	jobA := byName["JobA"]
	assert.Equal(t, status.StateSuccessful, jobA.Status)
	assert.Equal(t, 1, jobA.RunNumber)
	assert.Equal(t, "s1", jobA.StartTime)
	assert.Equal(t, 1, jobA.RunOrder)

	jobB := byName["JobB"]
	assert.Equal(t, status.StateWaiting, jobB.Status)
	assert.Equal(t, 2, jobB.RunNumber)

	jobC := byName["JobC"]
	assert.Equal(t, status.StateWaiting, jobC.Status)
	assert.Equal(t, 2, jobC.RunNumber)
}
