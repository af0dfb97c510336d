package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/testutil"
)

func newTestRecorder() *Recorder {
	return NewRecorder("trace-1", testutil.NewDeterministicClock(), NewSequenceGenerator("ev"))
}

func TestRecorder_SequentialSteps(t *testing.T) {
	rec := newTestRecorder()

	for i, action := range []string{"validate_input", "load", "persist"} {
		n, err := rec.Begin(action)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
		require.NoError(t, rec.End(n, nil))
	}

	steps, evidence, err := rec.Finish(nil)
	require.NoError(t, err)
	assert.Empty(t, evidence)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, domain.StatusCompleted, s.Status)
		assert.Equal(t, int64(1), s.DurationMS, "deterministic clock ticks 1ms per read")
	}
}

func TestRecorder_StepOrderViolations(t *testing.T) {
	t.Run("begin while open", func(t *testing.T) {
		rec := newTestRecorder()
		_, err := rec.Begin("first")
		require.NoError(t, err)

		_, err = rec.Begin("second")
		assert.True(t, HasCode(err, ErrCodeStepOrderViolation))
		assert.True(t, IsKind(err, KindContract))
	})

	t.Run("end a step that is not open", func(t *testing.T) {
		rec := newTestRecorder()
		n, err := rec.Begin("first")
		require.NoError(t, err)

		assert.True(t, HasCode(rec.End(n+1, nil), ErrCodeStepOrderViolation))
		require.NoError(t, rec.End(n, nil))
		assert.True(t, HasCode(rec.End(n, nil), ErrCodeStepOrderViolation), "double end")
	})

	t.Run("evidence outside a step", func(t *testing.T) {
		rec := newTestRecorder()
		err := rec.Attach(Evidence{Source: "x", Confidence: 100, Payload: InvariantCheck{Invariant: "X", Passed: true}})
		assert.True(t, HasCode(err, ErrCodeStepOrderViolation))
	})
}

func TestRecorder_FinalizedRejectsMutation(t *testing.T) {
	rec := newTestRecorder()
	_, _, err := rec.Finish(nil)
	require.NoError(t, err)

	_, err = rec.Begin("late")
	assert.True(t, HasCode(err, ErrCodeTraceFinalized))
	assert.True(t, HasCode(rec.End(1, nil), ErrCodeTraceFinalized))
	_, _, err = rec.Finish(nil)
	assert.True(t, HasCode(err, ErrCodeTraceFinalized))
}

func TestRecorder_FailedStepAndOpenStepOnFinish(t *testing.T) {
	rec := newTestRecorder()

	n, err := rec.Begin("fetch")
	require.NoError(t, err)
	require.NoError(t, rec.End(n, errors.New("upstream timeout")))

	_, err = rec.Begin("never_closed")
	require.NoError(t, err)

	steps, _, err := rec.Finish(errors.New("aborted"))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StatusFailed, steps[0].Status)
	assert.Equal(t, "upstream timeout", steps[0].ErrorMessage)
	assert.Equal(t, domain.StatusFailed, steps[1].Status)
	assert.Equal(t, "aborted", steps[1].ErrorMessage)
}

func TestRecorder_EvidenceIsHashedAndSequenced(t *testing.T) {
	rec := newTestRecorder()
	n, err := rec.Begin("check")
	require.NoError(t, err)

	payload := InvariantCheck{Invariant: "DraftCommittable", Passed: true, Subjects: map[string]string{"draft_timeline_id": "d-1"}}
	require.NoError(t, rec.Attach(Evidence{Source: "invariant", Confidence: 100, Payload: payload}))
	require.NoError(t, rec.Attach(Evidence{Source: "invariant", Confidence: 100, Payload: payload}))
	require.NoError(t, rec.End(n, nil))

	_, evidence, err := rec.Finish(nil)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	assert.Equal(t, 1, evidence[0].Seq)
	assert.Equal(t, 2, evidence[1].Seq)
	assert.Equal(t, "invariant_check", evidence[0].Kind)
	assert.Equal(t, `{"invariant":"DraftCommittable","passed":true,"subjects":{"draft_timeline_id":"d-1"}}`, evidence[0].Payload)
	assert.Equal(t, evidence[0].PayloadHash, evidence[1].PayloadHash, "identical payloads hash identically")
	assert.Len(t, evidence[0].PayloadHash, 64)
}

func TestRecorder_EvidenceValidation(t *testing.T) {
	rec := newTestRecorder()
	_, err := rec.Begin("check")
	require.NoError(t, err)

	tests := []struct {
		name string
		ev   Evidence
	}{
		{"no payload", Evidence{Source: "x", Confidence: 100}},
		{"no source", Evidence{Confidence: 100, Payload: AccessLog{}}},
		{"confidence above 100", Evidence{Source: "x", Confidence: 101, Payload: AccessLog{}}},
		{"negative confidence", Evidence{Source: "x", Confidence: -1, Payload: AccessLog{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, rec.Attach(tt.ev))
		})
	}
}
