package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterminism(t *testing.T) {
	a := map[string]any{"user_id": "u1", "baseline_id": "b1"}
	b := map[string]any{"baseline_id": "b1", "user_id": "u1"}

	ha, err := Hash(DomainInput, a)
	require.NoError(t, err)
	hb, err := Hash(DomainInput, b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	data := []byte(`{"a":1}`)
	h := sha256.New()
	h.Write([]byte(DomainOutput))
	h.Write([]byte{0x00})
	h.Write(data)

	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), OutputHash(data))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, HashBytes(DomainInput, data), HashBytes(DomainOutput, data))
}

func TestInputHashScopedByOrchestrator(t *testing.T) {
	input := map[string]any{"user_id": "u1"}

	h1, err := InputHash("timeline_generate", input)
	require.NoError(t, err)
	h2, err := InputHash("timeline_commit", input)
	require.NoError(t, err)
	h3, err := InputHash("timeline_generate", map[string]any{"user_id": "u2"})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestInputHashIgnoresNullOptionals(t *testing.T) {
	type in struct {
		UserID string  `json:"user_id"`
		Title  *string `json:"title"`
	}

	h1, err := InputHash("timeline_commit", in{UserID: "u1"})
	require.NoError(t, err)
	h2, err := InputHash("timeline_commit", map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
