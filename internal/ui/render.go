package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tuneblend/internal/models"
	"github.com/desertthunder/tuneblend/internal/services"
)

const timeLayout = "2006-01-02 15:04"

// Tracks lays out search results one per line with the URI underneath.
func Tracks(p *Palette, tracks []services.Track) string {
	if len(tracks) == 0 {
		return p.Warn("No tracks found") + "\n"
	}

	var b strings.Builder
	for i, t := range tracks {
		fmt.Fprintf(&b, "%2d. %s - %s", i+1, p.Title(t.Title), t.Artist)
		if t.Album != "" {
			fmt.Fprintf(&b, " (%s)", t.Album)
		}
		fmt.Fprintf(&b, " [%s]\n", Duration(t.Duration))
		fmt.Fprintf(&b, "    %s\n", p.Help(t.URI))
	}
	return b.String()
}

// Jobs lays out the playlist job ledger as a table, newest first as given.
func Jobs(p *Palette, jobs []*models.PlaylistJob) string {
	if len(jobs) == 0 {
		return p.Warn("No playlist jobs recorded") + "\n"
	}

	widths := []int{5, 12, 24, 24, 16}
	row := func(cells ...string) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = lipgloss.NewStyle().Width(widths[i]).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}

	var b strings.Builder
	b.WriteString(p.Title(row("SEQ", "STATUS", "PLAYLIST", "NAME", "CREATED")) + "\n")
	for _, j := range jobs {
		playlist := j.PlaylistID
		if playlist == "" {
			playlist = "-"
		}
		b.WriteString(row(
			fmt.Sprint(j.Sequence),
			Status(p, j.Status),
			truncate(playlist, widths[2]-2),
			truncate(j.Name, widths[3]-2),
			j.Created.Local().Format(timeLayout),
		) + "\n")
		if j.Error != "" {
			b.WriteString("      " + p.Err(j.Error) + "\n")
		}
	}
	return b.String()
}

// Status colors a job status by outcome.
func Status(p *Palette, s models.JobStatus) string {
	switch s {
	case models.JobPopulated:
		return p.OK(string(s))
	case models.JobFailed:
		return p.Err(string(s))
	case models.JobCompensated:
		return p.Warn(string(s))
	default:
		return string(s)
	}
}

// Duration formats seconds as m:ss.
func Duration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
