// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"ircwire/config"
	"ircwire/internal/core"
	"ircwire/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X ircwire/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// cliOptions are the flags that steer the CLI itself rather than the
// connection settings in config.Config.
type cliOptions struct {
	configPath string
	dryRun     bool
	version    bool
	help       bool
}

// Execute parses args and runs the appropriate ircwire mode.
func Execute(ctx context.Context, args []string) error {
	// First pass: only --config matters, so the file can be loaded
	// underneath the environment and the flags.
	var opts cliOptions
	probe := newFlagSet(config.New(), &opts)
	probe.SetOutput(io.Discard)
	if err := probe.Parse(args); err != nil {
		return err
	}

	cfg := config.New()
	if opts.configPath != "" {
		if err := config.LoadFile(opts.configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	// Second pass: flag defaults are now the file and env values, so
	// only flags given explicitly override them.
	opts = cliOptions{}
	verbose := cfg.Verbose
	fs := newFlagSet(cfg, &opts)
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	// A count flag always starts from zero.
	if !fs.Changed("verbose") {
		cfg.Verbose = verbose
	}

	if opts.help || (len(args) == 0 && cfg.Address == "" && cfg.Serve == "") {
		printUsage(fs)
		return nil
	}
	if opts.version {
		fmt.Printf("ircwire %s\n", version)
		return nil
	}

	// ── positional arguments ─────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Address = rest[0]
	default:
		return fmt.Errorf("expected one address, got %d arguments (use --help for usage)", len(rest))
	}

	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog := buildLogger(cfg)
	defer closeLog()

	if opts.dryRun {
		logger.Info("configuration OK")
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// newFlagSet binds every flag to cfg, using cfg's current values as
// the defaults.
func newFlagSet(cfg *config.Config, opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("ircwire", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.StringVar(&cfg.ClientID, "id", cfg.ClientID, "Client id for interactive mode (default: random UUID)")
	fs.StringVarP(&cfg.Serve, "serve", "s", cfg.Serve, "Serve the front-end bridge on `addr` instead of connecting")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allow-origin", cfg.AllowedOrigins, "WebSocket Origin accepted by the bridge (repeatable, * for any)")
	fs.DurationVarP(&cfg.DialTimeout, "timeout", "w", cfg.DialTimeout, "TCP connect timeout")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "TLS handshake timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-send write timeout (0 = none)")
	fs.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "How long a disconnected socket may drain")
	fs.IntVar(&cfg.EventBuffer, "event-buffer", cfg.EventBuffer, "Events queued for a slow front end before the oldest are dropped")
	fs.BoolVar(&cfg.TLSInsecure, "insecure", cfg.TLSInsecure, "Skip TLS certificate verification")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Route connections via SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to a size-rotated `file` instead of stderr")

	// ── CLI ──────────────────────────────────────────────────────
	fs.StringVar(&opts.configPath, "config", "", "YAML config `file`")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show this help")

	return fs
}

// buildLogger returns the process logger and a func that releases its
// output.
func buildLogger(cfg *config.Config) (*util.Logger, func()) {
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile == "" {
		return logger, func() {}
	}
	w := util.RotatingFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays)
	logger.SetOutput(w)
	logger.SetTimestamps(true)
	return logger, func() { w.Close() }
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ircwire – IRC connection core v%s

Opens plain or TLS IRC connections and relays raw lines, either for one
terminal session or for a front end over HTTP/WebSocket.

Usage:
  ircwire [options] <address>                 Interactive session
  ircwire --serve <addr> [options]            Front-end bridge

Address forms: host, host:port, ircs://host[:port], [v6addr]:port
(plain defaults to 6667, ircs:// to 6697)

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  ircwire ircs://irc.libera.chat              TLS session on 6697
  ircwire --id libera irc.libera.chat:6667    Plain session, fixed id
  ircwire -s 127.0.0.1:8080                   Bridge for a local UI
  ircwire -T ops@bastion ircs://irc.corp      Via SSH gateway
  printf 'NICK bot\nUSER bot 0 * :bot\n' | ircwire irc.example.net
`)
}
