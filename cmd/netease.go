package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/cloudnote/internal/formatter"
	"github.com/urfave/cli/v3"
)

// NeteaseDetail prints the raw detail response for a playlist, song or album.
func (r *Runner) NeteaseDetail(ctx context.Context, cmd *cli.Command) error {
	kind, id := cmd.String("type"), cmd.String("id")
	r.logger.Info("fetching detail", "type", kind, "id", id)

	raw, err := r.netease.Detail(ctx, kind, id)
	if err != nil {
		return err
	}

	if !cmd.Bool("pretty") {
		return r.writePlain("%s\n", raw)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	return r.writePlain("%s\n", buf.String())
}

// NeteaseRecords prints a user's normalized listening history.
func (r *Runner) NeteaseRecords(ctx context.Context, cmd *cli.Command) error {
	uid := cmd.String("uid")
	records, err := r.engine.Preview(ctx, uid)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	data, err := formatter.Export(formatter.FormatText, fmt.Sprintf("Listening history of %s", uid), records)
	if err != nil {
		return err
	}
	return r.writeRaw(data)
}
