package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tuneblend/internal/models"
	"github.com/desertthunder/tuneblend/internal/ui"
	"github.com/urfave/cli/v3"
)

var statusOrder = []models.JobStatus{
	models.JobPending, models.JobCreated, models.JobPopulated, models.JobFailed, models.JobCompensated,
}

// Jobs lists recorded playlist jobs, newest first.
func (r *Runner) Jobs(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, repo, err := openJobs(config)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(jobs, cmd.Bool("pretty"))
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Playlist jobs (%d shown)", len(jobs)))
	if err := r.writePlain("%s", ui.Jobs(r.palette, jobs)); err != nil {
		return err
	}
	if len(counts) > 0 {
		r.writePlain("\n")
		for _, status := range statusOrder {
			if n := counts[status]; n > 0 {
				r.writePlain("%s: %d  ", ui.Status(r.palette, status), n)
			}
		}
		r.writePlain("\n")
	}
	return nil
}
