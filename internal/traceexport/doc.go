// Package traceexport ships decision traces out of the store.
//
// Exporters receive fully loaded store.TraceRecord values (steps and
// evidence included) and serialize each one as canonical JSON, so an
// exported trace hashes the same wherever it lands.
package traceexport
