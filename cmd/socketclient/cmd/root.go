package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"socket-client/application/http"
	"socket-client/application/http/actor/client"
	"socket-client/application/session"
	"socket-client/application/util/domain"
	"socket-client/config"
	"socket-client/transport/tcp"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFlag         string
	readTimeoutFlag    time.Duration
	connectTimeoutFlag time.Duration
	insecureFlag       bool
	noColorFlag        bool
	verboseFlag        bool
)

var rootCmd = &cobra.Command{
	Use:   "socketclient",
	Short: "HTTP and HTTPS requests written by hand over raw sockets",
	Long: `socketclient resolves a target, opens a plain or TLS connection, writes an
HTTP/1.1 request byte by byte and prints whatever comes back until the server
closes the connection or goes silent for the read timeout.

Without a subcommand it runs an interactive session: after every exchange you
can start another one or type 'exit' to quit. Failures never end the session.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := setup(cmd)
		if err != nil {
			return err
		}
		return controller.Run(cmd.Context())
	},
}

func Execute(v string) {
	version = v

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			rootCmd.PrintErrln("Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// errReported marks failures the session already showed to the user.
var errReported = errors.New("reported")

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "config file (default ./"+config.DefaultFilename+" if present)")
	pf.DurationVar(&readTimeoutFlag, "read-timeout", 0, "longest silence tolerated while reading a response (default 5s)")
	pf.DurationVar(&connectTimeoutFlag, "connect-timeout", 0, "bound on each connection attempt and TLS handshake (default 10s)")
	pf.BoolVar(&insecureFlag, "insecure", false, "skip TLS certificate verification")
	pf.BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	pf.BoolVar(&verboseFlag, "verbose", false, "log every step to stderr")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and lays the flags the user set over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("read-timeout") {
		cfg.Timeout.Read = readTimeoutFlag
	}
	if flags.Changed("connect-timeout") {
		cfg.Timeout.Connect = connectTimeoutFlag
	}
	if flags.Changed("insecure") {
		cfg.TLS.InsecureSkipVerify = insecureFlag
	}
	if flags.Changed("no-color") {
		cfg.Output.NoColor = noColorFlag
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = verboseFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func setup(cmd *cobra.Command) (*session.Controller, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Output.Verbose)

	rootCAs, err := cfg.RootCAs()
	if err != nil {
		return nil, err
	}

	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	validator, err := http.NewPayloadValidator(schema)
	if err != nil {
		return nil, err
	}

	headers, err := cfg.Fields()
	if err != nil {
		return nil, err
	}

	opts := client.DefaultOptions()
	opts.Timeout.Connect = cfg.Timeout.Connect
	opts.Timeout.Read = cfg.Timeout.Read
	opts.TLS.RootCAs = rootCAs
	opts.TLS.InsecureSkipVerify = cfg.TLS.InsecureSkipVerify

	clk := clock.New()
	c := client.New(tcp.NewDialer(tcp.Options{}), domain.NewResolverLookuper(nil), logger, clk, opts)

	var reference []byte
	if cfg.Reference.Body != "" {
		reference = []byte(cfg.Reference.Body)
	}

	out := cmd.OutOrStdout()
	controller := session.New(
		c,
		session.NewPrompter(cmd.InOrStdin(), out),
		session.NewDisplay(out, cfg.Output.NoColor),
		logger, clk,
		session.Options{
			Reference: session.Plan{
				URL:    cfg.Reference.URL,
				Method: cfg.Reference.Method,
				Body:   reference,
			},
			Headers:   headers,
			Validator: validator,
		},
	)

	return controller, nil
}
