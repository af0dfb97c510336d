package invariant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
)

func TestValidInput(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	ok := map[string]any{"user_id": "u-1", "committed_timeline_id": "ct-1"}
	require.NoError(t, invariant.ValidInput(cat, catalog.DefAnalyticsInput, ok))

	bad := map[string]any{"user_id": "u-1"}
	err = invariant.ValidInput(cat, catalog.DefAnalyticsInput, bad)
	require.Error(t, err)
	assert.True(t, engine.HasCode(err, engine.ErrCodeInvalidRequest))

	e, _ := engine.AsError(err)
	assert.Equal(t, catalog.DefAnalyticsInput, e.Details["definition"])
	assert.NotEmpty(t, e.Details["reason"])
}

func TestKnownStageType(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	st, err := invariant.KnownStageType(cat, "research", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StageResearch, st)

	_, err = invariant.KnownStageType(cat, "RESEARCH", 2)
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindContract))
	assert.True(t, engine.HasCode(err, engine.ErrCodeUnknownStageType))

	e, _ := engine.AsError(err)
	assert.Equal(t, "RESEARCH", e.Details["stage_type"])
	assert.Equal(t, "2", e.Details["stage_index"])
	assert.Equal(t, "2", e.Details["catalog_version"])
	assert.Contains(t, e.Details["known"], "research")
}
