package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/adapters/storage/memory"
	"github.com/hylla/mauflow/internal/adapters/storage/sqlite"
	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/config"
	"github.com/hylla/mauflow/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// Environment overrides for the persistent flags.
const (
	envDevMode = "MAUFLOW_DEV_MODE"
	envAppName = "MAUFLOW_APP_NAME"
	envConfig  = "MAUFLOW_CONFIG"
	envDBPath  = "MAUFLOW_DB_PATH"
	envUser    = "MAUFLOW_USER"
)

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(context.Background(), root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line against the given writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the persistent flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	actor      string
	devMode    bool
	ephemeral  bool
}

// cli carries writers and options into subcommand handlers.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	opts   rootOptions
	now    func() time.Time
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{stdout: stdout, stderr: stderr, now: time.Now}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv(envDevMode); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv(envAppName)); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "mauflow",
		Short:         "Delegate tasks, discuss them, and track notifications for a small team",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&c.opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev) and the dev log file")
	flags.StringVar(&c.opts.actor, "as", strings.TrimSpace(os.Getenv(envUser)), "act as this team member id")
	flags.BoolVar(&c.opts.ephemeral, "ephemeral", false, "keep state in process memory instead of the sqlite database")

	root.AddCommand(
		c.pathsCommand(),
		c.configCommand(),
		c.teamCommand(),
		c.delegateCommand(),
		c.revokeCommand(),
		c.completeCommand(),
		c.delegationsCommand(),
		c.notificationsCommand(),
		c.commentCommand(),
		c.attachCommand(),
		c.simulateCommand(),
		c.inboxCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.storageCommand(),
	)
	return root
}

// resolved is the outcome of path and config resolution.
type resolved struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
}

// resolve locates the config file and database and loads configuration over defaults.
func (c *cli) resolve() (resolved, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.opts.appName,
		DevMode: c.opts.devMode,
	})
	if err != nil {
		return resolved{}, err
	}

	configPath := strings.TrimSpace(c.opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv(envConfig)); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(c.opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv(envDBPath)); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return resolved{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	return resolved{paths: paths, configPath: configPath, cfg: cfg}, nil
}

// session is one opened engine plus the resources that back it.
type session struct {
	engine *app.Engine
	cfg    config.Config
	logger *runtimeLogger
	store  kvStore
	actor  string
}

// open resolves configuration, opens sqlite, and starts an engine.
func (c *cli) open(ctx context.Context, command string) (*session, error) {
	r, err := c.resolve()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(c.stderr, c.opts.appName, c.opts.devMode, r.cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", c.opts.appName, "dev_mode", c.opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", r.configPath, "data_dir", r.paths.DataDir, "db_path", r.cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	store, err := c.openStore(r.cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	engine := app.NewEngine(store, serviceConfig(r.cfg, logger))
	if err := engine.Open(ctx); err != nil {
		logger.Error("engine open failed", "err", err)
		_ = store.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("open collaboration engine: %w", err)
	}

	actor := strings.TrimSpace(c.opts.actor)
	if actor == "" {
		actor = strings.TrimSpace(r.cfg.Identity.CurrentUser)
	}
	return &session{engine: engine, cfg: r.cfg, logger: logger, store: store, actor: actor}, nil
}

// kvStore is engine storage the session must release.
type kvStore interface {
	app.KeyValueStore
	Close() error
}

// memoryStore adapts the process-local store to kvStore.
type memoryStore struct {
	*memory.Store
}

func (memoryStore) Close() error { return nil }

// openStore opens sqlite, or a process-local store when --ephemeral is set.
func (c *cli) openStore(cfg config.Config, logger *runtimeLogger) (kvStore, error) {
	if c.opts.ephemeral {
		logger.Debug("using ephemeral in-memory store")
		return memoryStore{memory.New()}, nil
	}
	logger.Debug("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	return repo, nil
}

// context attaches the acting user, when one was chosen, to ctx.
func (s *session) context(ctx context.Context) context.Context {
	if s.actor == "" {
		return ctx
	}
	return app.WithActor(ctx, s.actor)
}

// Close stops engine timers and releases sqlite and the log file.
func (s *session) Close() {
	s.engine.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "err", err)
	}
	if err := s.logger.Close(); err != nil {
		s.logger.Warn("close runtime log sink failed", "err", err)
	}
}

// withSession opens a session around fn and logs the command flow.
func (c *cli) withSession(cmd *cobra.Command, name string, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, name)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Debug("command flow start", "command", name)
	if err := fn(s.context(ctx), s); err != nil {
		s.logger.Debug("command flow failed", "command", name, "err", err)
		return describeError(err)
	}
	s.logger.Debug("command flow complete", "command", name)
	return nil
}

// serviceConfig maps validated config onto engine settings.
func serviceConfig(cfg config.Config, logger *runtimeLogger) app.ServiceConfig {
	return app.ServiceConfig{
		Logger: logger.Engine(),
		Backoff: app.BackoffPolicy{
			BaseDelay:   config.Duration(cfg.Backoff.BaseDelay),
			Multiplier:  cfg.Backoff.Multiplier,
			MaxDelay:    config.Duration(cfg.Backoff.MaxDelay),
			MaxAttempts: cfg.Backoff.MaxAttempts,
			JitterRatio: cfg.Backoff.JitterRatio,
		},
		Coordinator: app.CoordinatorConfig{
			MaxRetries:    cfg.Retry.MaxRetries,
			RetryDelay:    config.Duration(cfg.Retry.RetryDelay),
			PendingTTL:    config.Duration(cfg.Retry.PendingTTL),
			SweepInterval: config.Duration(cfg.Retry.PendingSweepInterval),
		},
		Delivery: app.DeliveryConfig{
			ConnectDelay:       config.Duration(cfg.Notifications.ConnectDelay),
			SettleDelay:        config.Duration(cfg.Notifications.SettleDelay),
			SimulationInterval: config.Duration(cfg.Notifications.SimulationInterval),
			JitterRatio:        cfg.Notifications.DeliveryJitter,
		},
		PresenceInterval: config.Duration(cfg.Presence.Interval),
		RetentionDays:    cfg.Notifications.RetentionDays,
		CleanupInterval:  config.Duration(cfg.Notifications.CleanupInterval),
	}
}

// parseBoolEnv parses a boolean environment variable when present.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
