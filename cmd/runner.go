package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudnote/internal/repositories"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	notion     *services.NotionService
	netease    *services.NeteaseService
	engine     *tasks.ImportEngine
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Services left nil are built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Notion     *services.NotionService
	Netease    *services.NeteaseService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.configure(opts.Config, opts.Notion, opts.Netease)
	return r
}

// configure swaps in config and rebuilds every service that was not supplied.
func (r *Runner) configure(config *shared.Config, notion *services.NotionService, netease *services.NeteaseService) {
	if notion == nil {
		notion = services.NewNotionService(config.Notion, r.timeoutClient(config.Notion.TimeoutSeconds))
	}
	if netease == nil {
		netease = services.NewNeteaseService(config.Netease, r.timeoutClient(config.Netease.TimeoutSeconds))
	}

	r.config = config
	r.notion = notion
	r.netease = netease
	r.engine = tasks.NewImportEngine(netease, notion, shared.WithLogger(r.logger, "component", "import"))
}

// timeoutClient returns a client bounded by seconds, unless a custom client was injected.
func (r *Runner) timeoutClient(seconds int) *http.Client {
	if seconds <= 0 || r.httpClient != http.DefaultClient {
		return r.httpClient
	}
	return &http.Client{Timeout: time.Duration(seconds) * time.Second}
}

// Before resolves the --config file and rebuilds the services from it before any command runs.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := shared.ResolveConfig(path)
	if err != nil {
		return ctx, err
	}

	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = path
	r.configure(config, nil, nil)
	r.logger.Debug("configuration loaded", "path", path)
	return ctx, nil
}

// SetLogger replaces the logger, used when the TUI takes over the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = tasks.NewImportEngine(r.netease, r.notion, shared.WithLogger(logger, "component", "import"))
}

// openHistory opens the run history database. Callers close the returned handle.
func (r *Runner) openHistory() (*sql.DB, *repositories.ImportRunRepository, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewImportRunRepository(db), nil
}

// saveConfig writes the current config back to the --config path.
func (r *Runner) saveConfig() error {
	path := r.configPath
	if path == "" {
		path = DefaultConfigPath
	}
	if err := shared.SaveConfig(path, r.config); err != nil {
		return err
	}
	r.logger.Info("config saved", "path", path)
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, authCommand, importCommand, historyCommand, setupCommand, neteaseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
