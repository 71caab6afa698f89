package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a recorded run.
type runView struct {
	ID          string                 `json:"id"`
	Sequence    int                    `json:"sequence"`
	UID         string                 `json:"uid"`
	Status      string                 `json:"status"`
	Stage       string                 `json:"stage,omitempty"`
	PageID      string                 `json:"page_id,omitempty"`
	DatabaseURL string                 `json:"database_url,omitempty"`
	Attempted   int                    `json:"attempted"`
	Succeeded   int                    `json:"succeeded"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Failures    []models.ImportFailure `json:"failures,omitempty"`
}

func newRunView(run *models.ImportRun) runView {
	return runView{
		ID:          run.ID(),
		Sequence:    run.Sequence(),
		UID:         run.UID(),
		Status:      run.Status(),
		Stage:       run.Stage(),
		PageID:      run.PageID(),
		DatabaseURL: run.DatabaseURL(),
		Attempted:   run.Attempted(),
		Succeeded:   run.Succeeded(),
		Error:       run.ErrorMessage(),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
		Failures:    run.Failures(),
	}
}

// HistoryList prints recorded import runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repo.List(map[string]any{
		"uid":    cmd.String("uid"),
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No import runs recorded yet.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Import Runs (%d)", len(runs)))
	for _, run := range runs {
		started := "-"
		if t := run.StartedAt(); t != nil {
			started = t.Local().Format(time.DateTime)
		}
		r.writePlain("#%-4d %-9s uid=%-12s %d/%d  %s  %s\n",
			run.Sequence(), run.Status(), run.UID(), run.Succeeded(), run.Attempted(), started, run.ID())
		if run.Status() == models.RunFailed && run.ErrorMessage() != "" {
			r.writePlain("       failed at %s: %s\n", run.Stage(), run.ErrorMessage())
		}
	}
	return nil
}

// HistoryShow prints one run with its failed records.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repo.Get(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRunView(run), true)
	}

	r.writePlainHeader(fmt.Sprintf("Import Run #%d", run.Sequence()))
	r.writePlain("ID:        %s\n", run.ID())
	r.writePlain("UID:       %s\n", run.UID())
	r.writePlain("Status:    %s (stage %s)\n", run.Status(), run.Stage())
	if run.DatabaseURL() != "" {
		r.writePlain("Database:  %s\n", run.DatabaseURL())
	}
	r.writePlain("Uploaded:  %d/%d\n", run.Succeeded(), run.Attempted())
	if run.ErrorMessage() != "" {
		r.writePlain("Error:     %s\n", run.ErrorMessage())
	}

	if failures := run.Failures(); len(failures) > 0 {
		r.writePlainln("Failed records:")
		for _, f := range failures {
			r.writePlain("  - #%d %s: %s\n", f.Index+1, f.Name, f.Message)
		}
	}
	return nil
}
