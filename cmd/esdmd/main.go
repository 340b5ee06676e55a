// Command esdmd is the RPC service plane entrypoint. Invoked with no
// subcommand it runs the long-lived supervisor; "esdmd server" is the
// internal re-exec target the supervisor spawns as its privileged child
// (REDESIGN FLAG 1 in SPEC_FULL.md — fork(2) is unsafe once goroutines
// exist, so the supervisor/child split is done via self-re-exec instead).
//
// Flag-to-logger-to-signal-channel wiring mirrors a typical single-binary
// daemon CLI, generalized here to cobra subcommands for the root/server
// split.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/esdm-project/esdmd/internal/bootstrap"
	"github.com/esdm-project/esdmd/internal/config"
	"github.com/esdm-project/esdmd/internal/connserver"
	"github.com/esdm-project/esdmd/internal/drng"
	"github.com/esdm-project/esdmd/internal/logging"
	"github.com/esdm-project/esdmd/internal/metrics"
	"github.com/esdm-project/esdmd/internal/service"
	"github.com/esdm-project/esdmd/internal/supervisor"
)

var configPath string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "esdmd",
		Short:         "esdmd is the userspace random-number daemon's RPC service plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSupervisor,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: built-in defaults)")
	registerTransportFlags(root.PersistentFlags())

	root.AddCommand(newServerCommand())
	return root
}

// registerTransportFlags defines the transport/process knobs spec §6
// names as CLI flags, bound into viper by internal/config — present on
// both the root command and the server subcommand so the supervisor can
// forward whatever the operator set when it re-execs the child.
func registerTransportFlags(flags *pflag.FlagSet) {
	flags.String("unpriv-socket", "", "unprivileged endpoint socket path")
	flags.String("priv-socket", "", "privileged endpoint socket path")
	flags.Int("max-msg", 0, "maximum request/reply payload length in bytes")
	flags.Duration("read-timeout", 0, "per-read bounded timeout for connection handlers")
	flags.String("drop-user", "", "unprivileged account to drop into after bootstrap")
	flags.String("metrics-addr", "", "loopback address the /metrics HTTP endpoint binds to")
}

// newServerCommand is the bootstrap child's entrypoint, re-exec'd by the
// supervisor (spec §4.7, §4.8). It is not meant to be invoked directly by
// an operator, though nothing prevents it — it simply runs the same
// bootstrap sequence the supervisor's child always runs.
func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "run the privileged bootstrap sequence (internal re-exec target)",
		Hidden:        true,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}
	registerTransportFlags(cmd.Flags())
	return cmd
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg.LogLevel)

	return supervisor.Run(forwardedServerArgs(cmd.Flags()), supervisor.Resources{
		PrivSocketPath:   cfg.PrivSocketPath,
		UnprivSocketPath: cfg.UnprivSocketPath,
	})
}

// forwardedServerArgs rebuilds the "--flag value" argument list for every
// flag the operator actually set, so the re-exec'd child bootstraps with
// the exact same configuration as the supervisor that spawned it.
func forwardedServerArgs(flags *pflag.FlagSet) supervisor.ServerArgs {
	var args supervisor.ServerArgs
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		args = append(args, "--"+f.Name, f.Value.String())
	})
	return args
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg.LogLevel)

	backend := drng.New()
	tables := service.New(backend, cfg.MaxMsg)

	reg, promReg := metrics.NewRegistry()
	metricsSrv, err := metrics.NewServer(cfg.MetricsAddr, promReg)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	go func() {
		if err := metricsSrv.Serve(); err != nil {
			logging.Error("metrics server stopped", "error", err)
		}
	}()
	logging.Info("metrics listening", "addr", metricsSrv.Addr())

	return bootstrap.Run(bootstrap.Config{
		PrivSocketPath:   cfg.PrivSocketPath,
		UnprivSocketPath: cfg.UnprivSocketPath,
		DropUser:         cfg.DropUser,
		ConnServer: connserver.Config{
			MaxMsg:      cfg.MaxMsg,
			ReadTimeout: cfg.ReadTimeout,
			Observer:    reg,
		},
		PrivilegedTable:   tables.Privileged,
		UnprivilegedTable: tables.Unprivileged,
	})
}

func configureLogging(level string) {
	logging.SetDefault(logging.NewLogger(&logging.Config{Level: logging.ParseLevel(level), Output: os.Stderr}))
}
