// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/cloudnote/internal/formatter"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the OAuth relay and import server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the Notion OAuth relay and import server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record import runs in the database",
			},
		},
		Action: r.Serve,
	}
}

// authCommand handles Notion authorization for the CLI
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Notion authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Notion in the browser and save the access token",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the bot user behind the saved access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// importCommand copies listening history into a new Notion database
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a user's listening history into a new Notion database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "uid",
				Aliases:  []string{"u"},
				Usage:    "NetEase Cloud Music user id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "page-id",
				Usage: "Parent page for the database (defaults to the most recently edited shared page)",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Database title",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Notion access token (defaults to notion.access_token)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Preview and import interactively",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Fetch and transform only; print or export the records",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Dry run output format (%s)", strings.Join(formatter.Formats, ", ")),
				Value:   formatter.FormatJSON,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Dry run output file (stdout when empty)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the database",
			},
		},
		Action: r.Import,
	}
}

// historyCommand lists recorded import runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Recorded import runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent import runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "uid",
						Usage: "Only show runs for this user id",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show runs with this status (running, succeeded, partial, failed)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one run with its failed records",
				ArgsUsage: "<run-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// setupCommand handles first-time setup
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize local state",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, then initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "netease",
				Usage: "Save the NetEase login cookie from a browser cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from browser DevTools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing the cURL command",
					},
				},
				Action: r.SetupNetease,
			},
		},
	}
}

// neteaseCommand exposes the history API passthrough
func neteaseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "netease",
		Aliases: []string{"ne"},
		Usage:   "NetEase Cloud Music lookups",
		Commands: []*cli.Command{
			{
				Name:  "detail",
				Usage: "Fetch playlist, song or album detail",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    fmt.Sprintf("Detail type (%s)", strings.Join(services.DetailKinds, ", ")),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Resource id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.NeteaseDetail,
			},
			{
				Name:  "records",
				Usage: "Print a user's normalized listening history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "uid",
						Aliases:  []string{"u"},
						Usage:    "NetEase Cloud Music user id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.NeteaseRecords,
			},
		},
	}
}
