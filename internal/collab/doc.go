// Package collab defines the external collaborators the orchestrators call
// and the implementations that ship with phdctl.
//
// Content generators propose timeline structure from a baseline. Document
// processors turn an uploaded program document into text and metadata.
// Both are narrow interfaces; orchestrators never depend on a concrete
// implementation, and every proposal is validated by the caller before it
// is persisted.
package collab
