package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/testutil"
)

// fixture runs commands against one scratch database. The clock and id
// generator are shared across invocations so ids never collide.
type fixture struct {
	t         *testing.T
	dir       string
	db        string
	exportDir string
	clock     *testutil.DeterministicClock
	ids       *engine.SequenceGenerator
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	f := &fixture{
		t:         t,
		dir:       dir,
		db:        filepath.Join(dir, "phdtrack.db"),
		exportDir: filepath.Join(dir, "exports"),
		clock:     testutil.NewDeterministicClock(),
		ids:       engine.NewSequenceGenerator("id"),
	}
	t.Setenv("PHDTRACK_EXPORT_DIR", f.exportDir)
	return f
}

// run executes phdctl with the given arguments and returns stdout.
func (f *fixture) run(format string, args ...string) (string, error) {
	f.t.Helper()
	opts := &RootOptions{runnerOptions: []engine.Option{
		engine.WithClock(f.clock),
		engine.WithIDGenerator(f.ids),
	}}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", f.db, "--format", format}, args...))
	err := cmd.ExecuteContext(f.t.Context())
	return out.String(), err
}

type response struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Error   *CLIError      `json:"error"`
	TraceID string         `json:"trace_id"`
}

func (f *fixture) ok(args ...string) response {
	f.t.Helper()
	out, err := f.run("json", args...)
	require.NoError(f.t, err, out)
	var resp response
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(f.t, "ok", resp.Status)
	return resp
}

func (f *fixture) fail(args ...string) (response, error) {
	f.t.Helper()
	out, err := f.run("json", args...)
	require.Error(f.t, err)
	var resp response
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(f.t, "error", resp.Status)
	require.NotNil(f.t, resp.Error)
	return resp, err
}

func (f *fixture) writeFile(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// field walks nested maps and arrays by key or index.
func field(t *testing.T, v any, path ...any) any {
	t.Helper()
	for _, p := range path {
		switch k := p.(type) {
		case string:
			m, ok := v.(map[string]any)
			require.True(t, ok, "expected object at %q", k)
			v = m[k]
		case int:
			a, ok := v.([]any)
			require.True(t, ok, "expected array at %d", k)
			require.Greater(t, len(a), k)
			v = a[k]
		}
	}
	return v
}

func str(t *testing.T, v any, path ...any) string {
	t.Helper()
	s, ok := field(t, v, path...).(string)
	require.True(t, ok, "expected string at %v", path)
	return s
}

// journey creates u-1 with a baseline, a generated draft and its commit.
type journey struct {
	baselineID  string
	draftID     string
	stageID     string
	committedID string
	milestoneID string
	commitTrace string
}

func (f *fixture) journey() journey {
	t := f.t
	t.Helper()
	var j journey

	f.ok("user", "add", "--id", "u-1", "--name", "Ada", "--email", "ada@example.org")

	resp := f.ok("baseline", "create", "--request-id", "req-baseline", "--user", "u-1",
		"--program", "PhD in Computer Science", "--institution", "Test University",
		"--field", "Computer Science", "--start-date", "2026-01-01", "--months", "48")
	assert.Equal(t, "baseline_orchestrator", resp.Data["orchestrator"])
	j.baselineID = str(t, resp.Data, "result", "baseline", "id")

	resp = f.ok("timeline", "generate", "--request-id", "req-generate", "--user", "u-1",
		"--baseline", j.baselineID, "--title", "Plan A")
	j.draftID = str(t, resp.Data, "result", "draft", "id")
	j.stageID = str(t, resp.Data, "result", "stages", 0, "id")

	resp = f.ok("timeline", "commit", "--request-id", "req-commit", "--user", "u-1",
		"--draft", j.draftID)
	j.committedID = str(t, resp.Data, "result", "committed_timeline", "id")
	j.milestoneID = str(t, resp.Data, "result", "stages", 0, "milestones", 0, "id")
	j.commitTrace = resp.TraceID
	return j
}

func TestCommands_FullJourney(t *testing.T) {
	f := newFixture(t)
	j := f.journey()

	replay := f.ok("timeline", "commit", "--request-id", "req-commit", "--user", "u-1", "--draft", j.draftID)
	assert.Equal(t, true, replay.Data["cached"])
	assert.Equal(t, j.commitTrace, replay.TraceID)
	assert.Equal(t, j.committedID, str(t, replay.Data, "result", "committed_timeline", "id"))

	resp := f.ok("progress", "log", "--request-id", "req-progress", "--user", "u-1",
		"--milestone", j.milestoneID, "--type", "milestone_completed",
		"--title", "Courses done", "--date", "2026-06-30")
	assert.Equal(t, "progress_orchestrator", resp.Data["orchestrator"])

	responses := f.writeFile("responses.yaml", `
- {dimension: research_progress, question_id: q1, response_value: 4}
- {dimension: work_life_balance, question_id: q2, response_value: 3}
- {dimension: mental_wellbeing, question_id: q3, response_value: 5}
- {dimension: time_management, question_id: q4, response_value: 2}
- {dimension: motivation, question_id: q5, response_value: 4}
`)
	resp = f.ok("assess", "submit", "--request-id", "req-assess", "--user", "u-1",
		"--submission", "sub-1", "--responses", responses)
	score := field(t, resp.Data, "result", "assessment", "overall_score")
	assert.NotNil(t, score)

	resp = f.ok("analytics", "run", "--request-id", "req-analytics", "--user", "u-1",
		"--timeline", j.committedID)
	summary := field(t, resp.Data, "result", "snapshot", "summary")
	assert.EqualValues(t, 1, field(t, summary, "completed_milestones"))
	assert.Equal(t, score, field(t, summary, "latest_health_score"))

	s, err := store.Open(f.db)
	require.NoError(t, err)
	defer s.Close()
	counts := testutil.BusinessCounts(t, s)
	assert.Equal(t, 1, counts["committed_timelines"])
	assert.Equal(t, 1, counts["progress_events"])
	assert.Equal(t, 1, counts["journey_assessments"])
	assert.Equal(t, 1, counts["analytics_snapshots"])
}

func TestCommands_EditDraft(t *testing.T) {
	f := newFixture(t)
	f.ok("user", "add", "--id", "u-1", "--name", "Ada")
	resp := f.ok("baseline", "create", "--request-id", "req-baseline", "--user", "u-1",
		"--program", "PhD", "--institution", "Uni", "--field", "Physics",
		"--start-date", "2026-01-01", "--months", "36")
	baselineID := str(t, resp.Data, "result", "baseline", "id")
	resp = f.ok("timeline", "generate", "--request-id", "req-generate", "--user", "u-1", "--baseline", baselineID)
	draftID := str(t, resp.Data, "result", "draft", "id")
	stageID := str(t, resp.Data, "result", "stages", 0, "id")

	ops := f.writeFile("ops.yaml", `
- op: rename_stage
  stage_id: `+stageID+`
  title: Literature review
`)
	resp = f.ok("timeline", "edit", "--request-id", "req-edit", "--user", "u-1", "--draft", draftID, "--ops", ops)
	assert.Equal(t, "timeline_edit", resp.Data["orchestrator"])

	bad := f.writeFile("bad.yaml", "- op: rename_stage\n  stage_id: "+stageID+"\n  colour: red\n")
	failed, err := f.fail("timeline", "edit", "--request-id", "req-edit-2", "--user", "u-1", "--draft", draftID, "--ops", bad)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.ErrCodeInvalidRequest), failed.Error.Code)
}

func TestCommands_BaselineWithDocument(t *testing.T) {
	f := newFixture(t)
	f.ok("user", "add", "--id", "u-1", "--name", "Ada")
	doc := f.writeFile("requirements.txt", "Qualifying exam in year two. Thesis proposal by month 24.")

	resp := f.ok("baseline", "create", "--request-id", "req-baseline", "--user", "u-1",
		"--program", "PhD", "--institution", "Uni", "--field", "Biology",
		"--start-date", "2026-01-01", "--months", "48", "--document", doc)
	assert.NotEmpty(t, str(t, resp.Data, "result", "document_id"))

	again, err := f.fail("baseline", "create", "--request-id", "req-baseline-2", "--user", "u-1",
		"--program", "PhD", "--institution", "Uni", "--field", "Biology",
		"--start-date", "2026-01-01", "--months", "48", "--document", doc)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.ErrCodeBaselineAlreadyExists), again.Error.Code)
	assert.NotEmpty(t, again.TraceID)
}

func TestCommands_InvariantViolationExitsOne(t *testing.T) {
	f := newFixture(t)
	f.ok("user", "add", "--id", "u-1", "--name", "Ada")

	resp, err := f.fail("timeline", "commit", "--request-id", "req-commit", "--user", "u-1", "--draft", "d-404")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.ErrCodeDraftNotFound), resp.Error.Code)
	require.NotEmpty(t, resp.TraceID)

	verified := f.ok("trace", "verify", resp.TraceID)
	assert.Equal(t, true, verified.Data["valid"])

	out, err := f.run("text", "trace", "show", resp.TraceID)
	require.NoError(t, err)
	assert.Contains(t, out, "status:       FAILED")
	assert.Contains(t, out, "validate_draft_timeline_exists")
	assert.Contains(t, out, "[DRAFT_NOT_FOUND]")
}

func TestCommands_UserAddRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.ok("user", "add", "--id", "u-1", "--name", "Ada")

	resp, err := f.fail("user", "add", "--id", "u-1", "--name", "Ada again")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.ErrCodeInvalidRequest), resp.Error.Code)
}

func TestCommands_MissingRequestID(t *testing.T) {
	f := newFixture(t)
	_, err := f.run("json", "analytics", "run", "--user", "u-1", "--timeline", "ct-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "request-id")
}

func TestCommands_TraceListAndShowMissing(t *testing.T) {
	f := newFixture(t)
	f.journey()
	_, _ = f.fail("timeline", "commit", "--request-id", "req-commit-2", "--user", "u-1", "--draft", "d-404")

	all := f.ok("trace", "list")
	assert.Len(t, field(t, all.Data, "traces"), 4)

	failed := f.ok("trace", "list", "--status", "failed")
	traces := field(t, failed.Data, "traces").([]any)
	require.Len(t, traces, 1)
	assert.Equal(t, "req-commit-2", str(t, traces, 0, "request_id"))

	byOrch := f.ok("trace", "list", "--orchestrator", "timeline_generate")
	assert.Len(t, field(t, byOrch.Data, "traces"), 1)

	_, err := f.fail("trace", "list", "--status", "done")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = f.fail("trace", "show", "tr-missing")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCommands_TraceExport(t *testing.T) {
	f := newFixture(t)
	f.journey()

	resp := f.ok("trace", "export", "--to", "ndjson", "--name", "all.ndjson")
	assert.EqualValues(t, 3, resp.Data["exported"])

	file, err := os.Open(filepath.Join(f.exportDir, "all.ndjson"))
	require.NoError(t, err)
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var tr store.TraceRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &tr))
		assert.NotEmpty(t, tr.Steps)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 3, lines)

	noop := f.ok("trace", "export", "--to", "noop", "--orchestrator", "timeline_commit")
	assert.EqualValues(t, 1, noop.Data["exported"])
	assert.Equal(t, "noop", noop.Data["destination"])

	_, err = f.fail("trace", "export", "--to", "ftp")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCommands_LedgerStale(t *testing.T) {
	f := newFixture(t)

	empty := f.ok("ledger", "stale")
	assert.Empty(t, field(t, empty.Data, "entries"))

	s, err := store.Open(f.db)
	require.NoError(t, err)
	require.NoError(t, s.InTx(t.Context(), func(tx *store.Tx) error {
		for _, e := range []store.LedgerEntry{
			{OrchestratorName: "timeline_commit", RequestID: "req-old", Attempt: 1, InputHash: "h1", TraceID: "tr-old", CreatedAt: testutil.Epoch.Add(-time.Hour)},
			{OrchestratorName: "timeline_commit", RequestID: "req-new", Attempt: 1, InputHash: "h2", TraceID: "tr-new", CreatedAt: testutil.Epoch},
		} {
			if _, err := tx.InsertLedgerPending(t.Context(), e); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.Close())

	resp := f.ok("ledger", "stale", "--older-than", "30m")
	entries := field(t, resp.Data, "entries").([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-old", str(t, entries, 0, "request_id"))

	_, err = f.fail("ledger", "stale", "--older-than=-1m")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCommands_ScenarioRun(t *testing.T) {
	f := newFixture(t)
	scenario := filepath.Join("..", "harness", "testdata", "scenarios", "commit_flow.yaml")

	out, err := f.run("text", "scenario", "run", scenario)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "scenario_run_commit_flow", []byte(out))
}

func TestCommands_ScenarioRunFailureExitsOne(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile("broken.yaml", `
name: broken
description: Commit of a draft that does not exist, expected to succeed.
setup:
  users:
    - id: u-1
      display_name: Ada
steps:
  - name: commit
    orchestrator: timeline_commit
    request_id: req-commit
    input:
      user_id: u-1
      draft_timeline_id: d-404
    expect:
      ok: true
`)

	out, err := f.run("text", "scenario", "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL broken")
	assert.Contains(t, out, "[DRAFT_NOT_FOUND]")
	assert.Contains(t, out, "0/1 scenarios passed")
}
