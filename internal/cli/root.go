// Package cli implements the xtid command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	xclient "github.com/anatolykoptev/go-xclient"
	"github.com/anatolykoptev/go-xclient/internal/config"
	"github.com/anatolykoptev/go-xclient/xtid"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// apiClient is the part of *xclient.Client the commands use.
type apiClient interface {
	Signer() *xtid.Manager
	Get(ctx context.Context, rawURL string) (*xclient.Response, error)
}

type app struct {
	cfg *config.Config

	envFile   string
	proxy     string
	userAgent string
	timeout   time.Duration
	verbose   bool

	newClient func(ctx context.Context, cc xclient.ClientConfig) (apiClient, error)
}

func defaultNewClient(ctx context.Context, cc xclient.ClientConfig) (apiClient, error) {
	c, err := xclient.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := newRootCmd(&app{newClient: defaultNewClient})
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "xtid",
		Short: "Generate x-client-transaction-id headers and send signed X API requests",
		Long: `xtid scrapes the x.com home page and ondemand.s bundle to build a signing
context, then derives x-client-transaction-id values for API requests.

Configuration is read from XTID_* environment variables (and a .env file);
flags override the environment.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	f.StringVar(&a.proxy, "proxy", "", "proxy URL (overrides XTID_PROXY)")
	f.StringVar(&a.userAgent, "user-agent", "", "browser User-Agent (overrides XTID_USER_AGENT)")
	f.DurationVar(&a.timeout, "timeout", 0, "timeout for signer initialization and requests (overrides XTID_TIMEOUT)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.proxy != "" {
		cfg.Proxy = a.proxy
	}
	if a.userAgent != "" {
		cfg.UserAgent = a.userAgent
	}
	if a.timeout > 0 {
		cfg.Timeout = a.timeout
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	return nil
}

// client builds the API client; its signer is initialized before it returns.
func (a *app) client(ctx context.Context) (apiClient, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return a.newClient(ctx, a.cfg.ClientConfig())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "xtid", Version)
		},
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
