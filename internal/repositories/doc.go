// Package repositories implements SQLite persistence for playlist jobs.
//
// [PlaylistJobRepository] implements [models.Repository] for [models.PlaylistJob]. Track URIs are stored
// as a JSON array. Each job also gets a sequence number from [NextSequence] so the CLI can show
// short, ordered references (job #42) next to the UUID.
package repositories
