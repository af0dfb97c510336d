package guard_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/guard"
)

func TestAnalyticsPolicy_AllowedAccess(t *testing.T) {
	g := guard.New(guard.AnalyticsPolicy())

	for _, k := range []domain.EntityKind{
		domain.KindUser,
		domain.KindCommittedTimeline,
		domain.KindTimelineStage,
		domain.KindTimelineMilestone,
		domain.KindProgressEvent,
		domain.KindJourneyAssessment,
		domain.KindDraftTimeline,
	} {
		require.NoError(t, g.Read(k), "read %s", k)
	}
	require.NoError(t, g.Write(domain.KindAnalyticsSnapshot))

	ev, err := g.Sweep()
	require.NoError(t, err)
	assert.Equal(t, "guard.analytics", ev.Source)

	log, ok := ev.Payload.(engine.AccessLog)
	require.True(t, ok)
	assert.Equal(t, []string{"analytics_snapshot"}, log.Writes)
	assert.Len(t, log.Reads, 7)
	assert.Equal(t, "committed_timeline", log.Reads[0], "reads are sorted")
	assert.Empty(t, log.Violations)
}

func TestGuard_DisallowedAccess(t *testing.T) {
	tests := []struct {
		name   string
		access func(*guard.Guard) error
		want   string
	}{
		{"write to committed timeline", func(g *guard.Guard) error { return g.Write(domain.KindCommittedTimeline) }, "write:committed_timeline"},
		{"write to milestone", func(g *guard.Guard) error { return g.Write(domain.KindTimelineMilestone) }, "write:timeline_milestone"},
		{"read ledger", func(g *guard.Guard) error { return g.Read(domain.KindIdempotencyKey) }, "read:idempotency_key"},
		{"read documents", func(g *guard.Guard) error { return g.Read(domain.KindDocument) }, "read:document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := guard.New(guard.AnalyticsPolicy())

			err := tt.access(g)
			require.Error(t, err)
			assert.True(t, engine.HasCode(err, engine.ErrCodeReadOnlyViolation))
			assert.True(t, engine.IsKind(err, engine.KindContract))

			e, _ := engine.AsError(err)
			assert.Equal(t, tt.want, e.Details["violations"])
			assert.NotEmpty(t, e.Hint())
		})
	}
}

func TestGuard_SweepCatchesSwallowedViolation(t *testing.T) {
	g := guard.New(guard.AnalyticsPolicy())

	// The pipeline ignores the error; the sweep still fails.
	_ = g.Write(domain.KindTimelineMilestone)
	require.NoError(t, g.Write(domain.KindAnalyticsSnapshot))

	ev, err := g.Sweep()
	require.Error(t, err)
	assert.True(t, engine.HasCode(err, engine.ErrCodeReadOnlyViolation))

	log := ev.Payload.(engine.AccessLog)
	assert.Equal(t, []string{"analytics_snapshot", "timeline_milestone"}, log.Writes)
	assert.Equal(t, []string{"write:timeline_milestone"}, log.Violations)
	assert.Len(t, g.Violations(), 1)
}

func TestLoadAndStore(t *testing.T) {
	g := guard.New(guard.AnalyticsPolicy())

	n, err := guard.Load(g, domain.KindProgressEvent, func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	called := false
	_, err = guard.Load(g, domain.KindBaseline, func() (int, error) {
		called = true
		return 0, nil
	})
	require.Error(t, err)
	assert.False(t, called, "disallowed load must not touch the store")

	boom := errors.New("boom")
	err = guard.Store(g, domain.KindAnalyticsSnapshot, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	err = guard.Store(g, domain.KindProgressEvent, func() error {
		called = true
		return nil
	})
	assert.True(t, engine.HasCode(err, engine.ErrCodeReadOnlyViolation))
	assert.False(t, called)
}

func TestNewPolicy_Custom(t *testing.T) {
	p := guard.NewPolicy("reporting", []domain.EntityKind{domain.KindUser}, nil)
	g := guard.New(p)

	require.NoError(t, g.Read(domain.KindUser))
	err := g.Write(domain.KindUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reporting pipeline accessed disallowed entities: write:user")
}
