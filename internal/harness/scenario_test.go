package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one step
steps:
  - name: s1
    orchestrator: analytics_orchestrator
    request_id: r-1
    input: {}
    expect:
      error_code: INVALID_REQUEST
`

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			s, err := LoadScenario(p)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Steps)
		})
	}
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "INVALID_REQUEST", s.Steps[0].Expect.ErrorCode)
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: minimalScenario + "flow: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: y\nsteps: []\n",
			want: "steps list is required",
		},
		{
			name: "unknown orchestrator",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: billing, request_id: r, input: {}, expect: {ok: true}}
`,
			want: `unknown orchestrator "billing"`,
		},
		{
			name: "both ok and error code",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: timeline_commit, request_id: r, input: {}, expect: {ok: true, error_code: X}}
`,
			want: "exactly one of ok and error_code",
		},
		{
			name: "neither ok nor error code",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: timeline_commit, request_id: r, input: {}}
`,
			want: "exactly one of ok and error_code",
		},
		{
			name: "forward reference",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: timeline_commit, request_id: r, input: {draft_timeline_id: "${b.draft.id}"}, expect: {ok: true}}
  - {name: b, orchestrator: timeline_generate, request_id: r2, input: {}, expect: {ok: true}}
`,
			want: `unknown or later step "b"`,
		},
		{
			name: "duplicate step",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: timeline_commit, request_id: r, input: {}, expect: {ok: true}}
  - {name: a, orchestrator: timeline_commit, request_id: r, input: {}, expect: {ok: true}}
`,
			want: `duplicate step name "a"`,
		},
		{
			name: "missing input",
			yaml: `
name: x
description: y
steps:
  - {name: a, orchestrator: timeline_commit, request_id: r, expect: {ok: true}}
`,
			want: "input is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
