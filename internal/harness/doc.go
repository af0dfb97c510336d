// Package harness runs YAML scenarios against the orchestrators.
//
// Each scenario gets a fresh SQLite store under a temporary directory, a
// deterministic clock and sequential ids, so two runs of the same file
// produce the same ledger, the same traces and the same golden snapshot.
//
// A step input may reference an earlier step's output with
// ${step_name.field.path}. Path segments are JSON field names or array
// indexes:
//
//	- name: commit
//	  orchestrator: timeline_commit
//	  request_id: req-commit
//	  input:
//	    user_id: u-1
//	    draft_timeline_id: ${generate.draft.id}
//	  expect:
//	    ok: true
//
// RunAll runs independent scenario files in parallel, one store each.
package harness
