package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	assert.Equal(t, []ID{Upload, OCR, Analysis, Anonymization, Generation}, Order())
}

func TestDefinitions_ProgressIncreases(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 5)

	last := 0
	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.Greater(t, def.Progress, last, def.ID)
		last = def.Progress
	}
	assert.Equal(t, 100, last)

	// Callers get a copy
	defs[0].Progress = 0
	first, ok := Lookup(Upload)
	require.True(t, ok)
	assert.Equal(t, 20, first.Progress)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("render_latex")
	assert.False(t, ok)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusError} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("in_progress").Valid())
}

func TestValidateDependencies(t *testing.T) {
	statuses := map[ID]Status{Upload: StatusCompleted, OCR: StatusProcessing}

	assert.NoError(t, ValidateDependencies(statuses, Upload))
	assert.NoError(t, ValidateDependencies(statuses, OCR))

	err := ValidateDependencies(statuses, Analysis)
	require.Error(t, err)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, Analysis, depErr.Step)
	assert.Equal(t, []ID{OCR}, depErr.MissingDependencies)
	assert.Contains(t, err.Error(), "missing dependencies")
}

func TestValidateDependencies_UnknownStep(t *testing.T) {
	err := ValidateDependencies(nil, "render_latex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestAvailable(t *testing.T) {
	assert.Equal(t, []ID{Upload}, Available(map[ID]Status{}))

	statuses := map[ID]Status{
		Upload:   StatusCompleted,
		OCR:      StatusCompleted,
		Analysis: StatusError,
	}
	assert.Equal(t, []ID{Analysis}, Available(statuses))

	statuses[Analysis] = StatusProcessing
	assert.Empty(t, Available(statuses))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(nil))
	assert.Equal(t, 40, Progress(map[ID]Status{Upload: StatusCompleted, OCR: StatusCompleted}))
	assert.Equal(t, 90, Progress(map[ID]Status{
		Upload: StatusCompleted, OCR: StatusCompleted, Analysis: StatusCompleted,
		Anonymization: StatusCompleted, Generation: StatusError,
	}))
	assert.Equal(t, 100, Progress(map[ID]Status{
		Upload: StatusCompleted, OCR: StatusCompleted, Analysis: StatusCompleted,
		Anonymization: StatusCompleted, Generation: StatusCompleted,
	}))
}
