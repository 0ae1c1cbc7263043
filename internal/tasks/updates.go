package tasks

import "fmt"

// ProgressUpdate reports the current phase of a build.
type ProgressUpdate struct {
	JobID   string
	Phase   Phase
	Step    int // Current step number
	Total   int // Total steps
	Message string
}

// Build phases
type Phase int

const (
	Validate Phase = iota
	CreatePlaylist
	AddTracks
	Compensate
	Done
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Compensate:
		return "compensate"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

func createPlaylistUpdate(jobID, name string) ProgressUpdate {
	return ProgressUpdate{JobID: jobID, Phase: CreatePlaylist, Step: 1, Total: 2, Message: fmt.Sprintf("Creating playlist %q", name)}
}

func addTracksUpdate(jobID, playlistID string, n int) ProgressUpdate {
	return ProgressUpdate{JobID: jobID, Phase: AddTracks, Step: 2, Total: 2, Message: fmt.Sprintf("Adding %d tracks to %s", n, playlistID)}
}

func compensateUpdate(jobID, playlistID string) ProgressUpdate {
	return ProgressUpdate{JobID: jobID, Phase: Compensate, Step: 2, Total: 2, Message: fmt.Sprintf("Removing playlist %s", playlistID)}
}

func doneUpdate(jobID, playlistID string) ProgressUpdate {
	return ProgressUpdate{JobID: jobID, Phase: Done, Step: 2, Total: 2, Message: fmt.Sprintf("Playlist %s ready", playlistID)}
}
