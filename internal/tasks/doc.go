// Package tasks orchestrates multi-step upstream operations.
//
// # Playlist Builder
//
// [PlaylistBuilder.Build] turns a selection of exactly [SongCount] track URIs into a private playlist:
//
//  1. Create the playlist for the caller's access token
//  2. Add the tracks to it by id
//
// The steps are not atomic. Each build is tracked by a [models.PlaylistJob] which records how far it got,
// persisted through the optional [JobStore]. Store errors are logged and never fail a build.
//
// When [BuildOptions.Compensate] is set and step 2 fails, the created playlist is unfollowed and the
// job ends as compensated. Otherwise the empty playlist is left behind.
//
// # Progress Reporting
//
// An optional [PlaylistBuilder.OnProgress] hook receives a [ProgressUpdate] as each phase starts.
package tasks
