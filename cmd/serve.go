package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cloudnote/internal/repositories"
	"github.com/desertthunder/cloudnote/internal/server"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the relay server until the context is cancelled. History fetches for imports go through the circuit
// breaker configured under [breaker].
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	if !r.notion.HasClient() {
		r.logger.Warn("notion client credentials are not configured; /api/notion/authorize will fail",
			"env", []string{shared.EnvNotionClientID, shared.EnvNotionClientSecret})
	}

	var recorder tasks.RunRecorder
	if !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("run history disabled", "error", err)
		} else {
			defer db.Close()
			recorder = repositories.NewImportHistoryAdapter(repo)
		}
	}

	breaker := services.NewBreakerSource(r.netease, r.config.Breaker, shared.WithLogger(r.logger, "component", "breaker"))
	srv, err := server.New(server.Deps{
		Config:   r.config,
		Notion:   r.notion,
		Netease:  r.netease,
		Source:   breaker,
		Recorder: recorder,
		Logger:   r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	r.writePlain("→ Listening on http://%s\n", r.config.Server.Addr())
	return srv.ListenAndServe(ctx)
}
