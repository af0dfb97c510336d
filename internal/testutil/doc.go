// Package testutil provides deterministic time and store fixtures for
// tests across the module.
package testutil
