// Package store provides durable storage for the PhD timeline engine.
//
// The store holds three groups of tables:
//   - Domain state: users, documents, baselines, draft and committed
//     timelines, stages, milestones, progress events, journey assessments
//     and analytics snapshots
//   - The idempotency ledger: one row per (orchestrator, request, attempt)
//   - Decision traces: one trace per attempt, with ordered steps and
//     evidence bundles
//
// # Integrity Rules
//
// Ledger liveness
//   - Partial UNIQUE(orchestrator_name, request_id) WHERE status <> 'FAILED'
//   - At most one live (PENDING or COMPLETED) attempt per request; a FAILED
//     attempt is kept and a retry takes the next attempt number
//
// Terminal rows
//   - Ledger and trace rows leave PENDING exactly once
//   - Triggers reject any further UPDATE and every DELETE
//
// Append-only history
//   - Baselines, committed timelines, progress events, assessments,
//     analytics snapshots, trace steps and evidence reject UPDATE and DELETE
//   - Committed milestones may only gain a completion mark
//   - An inactive draft is frozen
//
// Deterministic reads
//   - Every list query orders by an explicit key with id as tie-breaker
//
// # Database Configuration
//
// SQLite (Open):
//   - WAL mode, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON
//   - A single pooled connection; never hold a Tx while starting another
//
// PostgreSQL (OpenPostgres) uses the pgx stdlib driver. Queries are
// written with '?' placeholders and rebound per Dialect.
package store
