// Package models defines the persisted entities of the tuneblend proxy.
//
// [PlaylistJob] records one create-playlist request and how far it got against the upstream API.
// Jobs move through a small state machine:
//
//	pending -> created -> populated
//	pending -> failed
//	created -> failed
//	created -> compensated
//
// All persistent entities implement [Model]; [Repository] defines the CRUD surface used by the
// repositories package.
package models
