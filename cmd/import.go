package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudnote/internal/formatter"
	"github.com/desertthunder/cloudnote/internal/repositories"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/tasks"
	"github.com/desertthunder/cloudnote/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUILogPath receives log output while the TUI owns the terminal.
const TUILogPath = "./tmp/cloudnote-tui.log"

// Import runs the full pipeline for --uid, or only fetch and transform with --dry-run.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	req := tasks.ImportRequest{
		UID:    cmd.String("uid"),
		Token:  cmd.String("token"),
		PageID: cmd.String("page-id"),
		Title:  cmd.String("title"),
	}
	if req.Token == "" {
		req.Token = r.config.Notion.AccessToken
	}

	if cmd.Bool("dry-run") {
		return r.dryRun(ctx, cmd, req)
	}

	if err := req.Validate(); err != nil {
		if req.Token == "" {
			return fmt.Errorf("%w (run 'cloudnote auth login' or pass --token)", err)
		}
		return err
	}

	if cmd.Bool("tui") {
		if err := r.useTUILogger(); err != nil {
			return err
		}
	}

	if !cmd.Bool("no-history") {
		closeHistory := r.recordRuns()
		defer closeHistory()
	}

	if cmd.Bool("tui") {
		return r.importTUI(ctx, req)
	}
	return r.importPlain(ctx, req)
}

// recordRuns attaches the run history database to the engine. Failing to open it only disables history.
func (r *Runner) recordRuns() func() {
	db, repo, err := r.openHistory()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
		return func() {}
	}
	r.engine.WithRecorder(repositories.NewImportHistoryAdapter(repo))
	return func() { db.Close() }
}

func (r *Runner) useTUILogger() error {
	fileLogger, err := shared.NewFileLogger(TUILogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	return nil
}

func (r *Runner) importPlain(ctx context.Context, req tasks.ImportRequest) error {
	r.logger.Info("starting import", "uid", req.UID, "page_id", req.PageID)
	r.writePlain("Importing listening history of %s into Notion...\n\n", req.UID)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.printProgress(update)
		}
	}()

	result, err := r.engine.Run(ctx, req, progressCh)
	close(progressCh)
	<-printed

	if result != nil {
		r.printResult(result)
	}
	return err
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchHistory, tasks.ResolveParent:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.ProvisionDatabase:
		r.writePlain("📝 %s\n", update.Message)
	case tasks.UploadRecords:
		r.writePlain("   %s\n", update.Message)
	case tasks.Complete:
	default:
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) printResult(result *tasks.ImportResult) {
	r.writePlain("\n")
	switch result.Outcome {
	case tasks.OutcomeSucceeded:
		r.writePlainHeader("Import Complete!")
	case tasks.OutcomePartial:
		r.writePlainHeader("Import Partially Complete")
	default:
		r.writePlainHeader("Import Failed")
	}

	r.writePlain("%s\n", result.Message())
	if result.Outcome == tasks.OutcomeFailed {
		return
	}
	r.writePlain("Success rate: %d/%d (of %d records)\n", result.Succeeded, result.Attempted, result.Total)

	if len(result.Failures) > 0 {
		r.writePlain("\nFailed to create %d records:\n", len(result.Failures))
		for _, f := range result.Failures {
			r.writePlain("  - #%d %s: %s\n", f.Index+1, f.Name, f.Message)
		}
	}
}

func (r *Runner) importTUI(ctx context.Context, req tasks.ImportRequest) error {
	model := ui.NewModel(ctx, r.engine, req)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	result, err := model.Result()
	if result != nil {
		r.printResult(result)
	}
	return err
}

// dryRun fetches and transforms without touching Notion, then prints or exports the records.
func (r *Runner) dryRun(ctx context.Context, cmd *cli.Command, req tasks.ImportRequest) error {
	if req.UID == "" {
		return fmt.Errorf("%w: --uid is required", shared.ErrMissingArgument)
	}

	records, err := r.engine.Preview(ctx, req.UID)
	if err != nil {
		return err
	}

	title := req.Title
	if title == "" {
		title = tasks.DefaultTitle(req.UID)
	}

	format := cmd.String("format")
	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(format, title, req.UID, records, output)
		if err != nil {
			return err
		}
		r.logger.Info("dry run exported", "records", len(records), "path", path)
		return r.writePlain("✓ Exported %d records to %s\n", len(records), path)
	}

	data, err := formatter.Export(format, title, records)
	if err != nil {
		return err
	}
	return r.writeRaw(data)
}

func (r *Runner) writeRaw(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
