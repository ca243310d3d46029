package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/cache"
	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/queue"
	"github.com/desertthunder/stepsync/internal/services"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
	"github.com/desertthunder/stepsync/internal/syncer"
	"github.com/desertthunder/stepsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	store      store.Store
	cache      *cache.Cache
	queue      *queue.Queue
	monitor    *netmon.Monitor
	remote     services.Remote
	auth       syncer.AuthState
	oauth      *services.Authenticator
	engine     *tasks.Engine
	favorites  *syncer.Favorites
	choreos    *syncer.Choreographies
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      store.Store
	Remote     services.Remote
	Auth       syncer.AuthState
	OAuth      *services.Authenticator
	Monitor    *netmon.Monitor
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
// The cache, queue, drain engine and collections are derived from the
// store, remote and auth dependencies.
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
	if opts.Monitor == nil {
		opts.Monitor = netmon.New(opts.Logger)
	}
	if opts.Auth == nil && opts.OAuth != nil {
		opts.Auth = opts.OAuth
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		monitor:    opts.Monitor,
		remote:     opts.Remote,
		auth:       opts.Auth,
		oauth:      opts.OAuth,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if opts.Store != nil {
		r.cache = cache.New(opts.Store, opts.Logger)
		r.queue = queue.New(opts.Store, opts.Logger)
	}
	if opts.Remote != nil && r.queue != nil {
		executor := syncer.NewRemoteExecutor(opts.Remote, opts.Logger)
		r.engine = tasks.NewEngine(r.queue, executor, opts.Monitor, opts.Logger)
	}
	if opts.Remote != nil && opts.Auth != nil && r.cache != nil {
		r.favorites = syncer.NewFavorites(opts.Remote, r.cache, opts.Auth, r.queue, opts.Monitor, opts.Logger)
		r.choreos = syncer.NewChoreographies(opts.Remote, r.cache, opts.Auth, r.queue, opts.Monitor, opts.Logger)
	}

	return r
}

// SetLogger swaps the logger, used when the TUI redirects logs to a file.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, favoritesCommand, choreoCommand, queueCommand, drainCommand, cacheCommand, statusCommand, tuiCommand,
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
