// Package engine implements the base orchestrator: exactly-once execution
// of named pipelines with a decision trace per attempt.
//
// ARCHITECTURE:
//
// Every orchestrator is a Pipeline run through Execute. Execute owns the
// idempotency ledger and the decision trace; pipelines only contribute
// steps and evidence.
//
// Execution Flow:
// 1. Validate request id and orchestrator name, hash the input
// 2. Claim transaction: ledger lookup, then PENDING ledger row + PENDING trace
// 3. Business transaction: pipeline steps, ledger COMPLETED, trace persisted
// 4. Failure transaction (on error): steps so far, ledger FAILED, trace FAILED
//
// Ledger outcomes for a known request id:
// - Different input hash: HASH_MISMATCH, nothing written
// - COMPLETED: cached payload returned, pipeline not run
// - PENDING: CONCURRENT_EXECUTION (retryable)
// - FAILED: a new attempt with the next attempt number
//
// CRITICAL PATTERNS:
//
// Single connection per step:
// Each transaction is finished before the next begins. With SQLite the
// pool holds one connection, so a pipeline must never touch the Store
// directly while its Run.Tx is open.
//
// Deterministic traces:
// Steps are numbered 1..n by the Recorder. Time and ids come from the
// injected Clock and IDGenerator so tests and golden files are stable.
package engine
