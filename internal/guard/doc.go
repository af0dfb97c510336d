// Package guard enforces read-only contracts on pipelines that must not
// mutate the state they aggregate.
//
// A Guard is created per attempt from a Policy. The pipeline declares every
// access before it performs it: Read and Write return READ_ONLY_VIOLATION
// for a kind outside the policy, so a disallowed access stops the pipeline
// before the store call. Sweep runs last; it records the access log as
// evidence and fails if any violation was seen, including ones a caller
// chose to swallow.
package guard
