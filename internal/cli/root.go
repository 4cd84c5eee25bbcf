// Package cli implements the hms command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/output"
	"github.com/MrEthical07/goHMS/metrics/export/prometheus"
	"github.com/MrEthical07/goHMS/session"
)

// Options overrides process-level dependencies, mainly for tests.
type Options struct {
	Version    string
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	HTTPClient *http.Client
	// Store replaces the configured file or Redis store.
	Store session.TokenStore
	// EnvFile defaults to ".env".
	EnvFile string
}

type app struct {
	opts    Options
	v       *viper.Viper
	cfgFile string

	cfg     *Config
	logger  *slog.Logger
	printer *output.Printer
	client  *goHMS.Client
	closers []func() error
}

// Execute runs the hms command with os.Args.
func Execute(version string) error {
	return Run(Options{Version: version}, os.Args[1:])
}

// Run executes one hms invocation with args and releases the client, store
// connections included, even when the command fails.
func Run(opts Options, args []string) error {
	root, a := newRootCmd(opts)
	root.SetArgs(args)
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// newRootCmd builds the command tree. Each invocation gets its own viper
// instance so commands can run repeatedly in one process.
func newRootCmd(opts Options) (*cobra.Command, *app) {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	a := &app{opts: opts, v: viper.New()}

	root := &cobra.Command{
		Use:   "hms",
		Short: "House management system client",
		Long: `hms talks to the house management REST API.

Credentials persist between invocations, and an expired access token is
refreshed transparently from the stored refresh cookie.

Example usage:
  hms login --email admin@hms.test
  hms list units --filter status=OCCUPIED
  hms get properties 7b2f...
  hms update units 91ac... --data '{"rentAmount": 180000}'
  hms dashboard`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a.printMetrics()
			return nil
		},
	}
	if opts.In != nil {
		root.SetIn(opts.In)
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./hms.yaml or $HOME/.config/hms/hms.yaml)")
	flags.String("base-url", "", "API base URL")
	flags.String("profile", "", "session profile name")
	flags.StringP("output", "o", "", "output format: table or json")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.Bool("metrics", false, "print client metrics in Prometheus format after the command")

	_ = a.v.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = a.v.BindPFlag("session.profile", flags.Lookup("profile"))
	_ = a.v.BindPFlag("output.format", flags.Lookup("output"))
	_ = a.v.BindPFlag("metrics.print", flags.Lookup("metrics"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.canCmd(),
		a.listCmd(),
		a.getCmd(),
		a.createCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.dashboardCmd(),
		a.metricsCmd(),
	)
	root.AddCommand(a.resourcesCmd())

	return root, a
}

func (a *app) init() error {
	cfg, err := LoadConfig(a.v, a.cfgFile, a.opts.EnvFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := parseLevel(cfg.Logging.Level)
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.opts.Err, &slog.HandlerOptions{Level: level}))

	format, _ := output.ParseFormat(cfg.Output.Format)
	a.printer = output.NewPrinter(a.opts.Out, a.opts.Err, output.ResolveColors(cfg.Output.Colors), format)

	a.logger.Debug("configuration loaded",
		"base_url", cfg.API.BaseURL,
		"profile", cfg.Session.Profile,
		"redis", cfg.Session.RedisAddr != "",
	)
	return nil
}

// open builds the client and restores the persisted session. It is called
// lazily so "--help" never touches the network or the store.
func (a *app) open(ctx context.Context) (*goHMS.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	store, err := a.store()
	if err != nil {
		return nil, err
	}

	b := goHMS.New().
		WithConfig(a.cfg.clientConfig(a.opts.Version)).
		WithTokenStore(store).
		WithLogger(a.logger)
	if a.opts.HTTPClient != nil {
		b = b.WithHTTPClient(a.opts.HTTPClient)
	}

	client, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	if _, err := client.RestoreSession(ctx); err != nil {
		a.logger.Warn("session restore failed", "err", err)
	}
	return client, nil
}

func (a *app) store() (session.TokenStore, error) {
	if a.opts.Store != nil {
		return a.opts.Store, nil
	}

	if addr := a.cfg.Session.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		a.closers = append(a.closers, rdb.Close)
		return session.NewRedisStore(rdb, a.cfg.Session.RedisPrefix, a.cfg.Session.Profile, 0), nil
	}

	path, err := a.cfg.sessionFile()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(path), nil
}

// requireSession opens the client and fails unless a user is signed in.
func (a *app) requireSession(ctx context.Context) (*goHMS.Client, error) {
	client, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	if !client.IsAuthenticated() {
		return nil, fmt.Errorf("%w: run \"hms login\" first", goHMS.ErrNotAuthenticated)
	}
	return client, nil
}

func (a *app) printMetrics() {
	if a.cfg != nil && a.cfg.Metrics.Print && a.client != nil {
		_, _ = io.WriteString(a.opts.Err, prometheus.NewPrometheusExporter(a.client).Render())
	}
}

func (a *app) close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	a.client = nil
	return firstErr
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, fmt.Errorf("invalid logging.level %q", s)
}
