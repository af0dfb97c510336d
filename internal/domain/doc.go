// Package domain defines the persisted entity types of the PhD timeline
// tracker and the small closed enumerations they use.
//
// Ownership is explicit: every entity carries the owning user's id and
// cross-entity rules are checked by internal/invariant, never by cascades.
// This package contains type definitions only and imports nothing internal.
package domain
