package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/mpdctl/internal/config"
	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// app is the state shared by every command of one invocation. In the shell
// the client stays connected across commands.
type app struct {
	configPath string
	address    string
	output     string
	verbose    bool

	cfg     config.Config
	loaded  bool
	client  *mpd.Client
	out     io.Writer
	inShell bool
}

func addGlobalFlags(fs *pflag.FlagSet, a *app) {
	fs.StringVarP(&a.configPath, "config", "c", os.Getenv("MPDCTL_CONFIG"), "config file (TOML)")
	fs.StringVarP(&a.address, "address", "a", "", "daemon address: host[:port], /socket, tcp://, unix://, tls://, ws://")
	fs.StringVarP(&a.output, "output", "o", "", "output format: text|json|yaml")
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mpdctl",
		Short:         "Control a Music Player Daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags())
		},
	}
	addGlobalFlags(root.PersistentFlags(), a)
	root.SetOut(a.out)

	root.AddCommand(
		newVersionCmd(a),
		newConfigCmd(a),
		newWatchCmd(a),
		newShellCmd(a),
		newRawCmd(a),
	)
	addPlayerCmds(root, a)
	addPlaylistCmds(root, a)
	addLibraryCmds(root, a)
	return root
}

// setup loads the configuration once and applies flag overrides.
func (a *app) setup(fs *pflag.FlagSet) error {
	logging.ConfigureRuntime()
	switch {
	case a.verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case os.Getenv(logging.EnvLogLevel) == "":
		// Command output goes to stdout; keep stderr for problems.
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	if !a.loaded {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg, a.loaded = cfg, true
	}
	if fs.Changed("address") {
		a.cfg.Address = a.address
	}
	if fs.Changed("output") {
		a.cfg.Output = a.output
	}
	return a.cfg.Validate()
}

func (a *app) connect(ctx context.Context) (*mpd.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	c, err := mpd.Dial(ctx, a.cfg.Address, mpd.DialOptions{
		Session:            a.cfg.Session(),
		TLS:                a.cfg.TLS,
		MaxConnectAttempts: a.cfg.MaxConnectAttempts,
		Password:           a.cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
}

// withClient adapts a client action to a cobra RunE.
func (a *app) withClient(fn func(ctx context.Context, c *mpd.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := a.connect(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd.Context(), c, args)
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and daemon versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "mpdctl %s (%s)\n", Version, Commit)
			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if v, ok := c.Version(); ok {
				fmt.Fprintf(a.out, "mpd protocol %s\n", v)
			}
			return nil
		},
	}
}

func newRawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <command>...",
		Short: "Send a protocol command verbatim and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.withClient(func(ctx context.Context, c *mpd.Client, args []string) error {
			resp, err := c.Raw(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.render(resp.Fields, func(w io.Writer) {
				for _, line := range resp.Lines() {
					fmt.Fprintln(w, line)
				}
			})
		}),
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{out: out}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mpdctl: %v\n", err)
		os.Exit(1)
	}
}
