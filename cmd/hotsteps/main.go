// Command hotsteps runs a YAML step script and keeps it reconciled while the
// file is edited: changed steps are undone and re-run, untouched ones keep
// their results.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/hotsteps/internal/config"
	"github.com/dshills/hotsteps/internal/logging"
)

// app carries the configuration and logger resolved by the root command.
type app struct {
	configPath string
	v          *viper.Viper

	cfg     *config.Config
	logger  *slog.Logger
	logSink io.Closer
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "hotsteps",
		Short:         "Incremental step runner with undo and live reload",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logSink != nil {
				return a.logSink.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (YAML)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")
	flags.String("journal", "", "Journal driver: memory, sqlite, mysql, none")
	flags.String("dsn", "", "Journal data source (sqlite path or MySQL DSN)")
	flags.String("run-id", "", "Run identifier (default: random)")

	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("journal.driver", flags.Lookup("journal"))
	_ = a.v.BindPFlag("journal.dsn", flags.Lookup("dsn"))
	_ = a.v.BindPFlag("engine.run_id", flags.Lookup("run-id"))

	root.AddCommand(runCmd(a))
	root.AddCommand(checkCmd(a))
	root.AddCommand(historyCmd(a))

	return root
}

func (a *app) init() error {
	cfg, err := config.LoadWith(a.v, a.configPath)
	if err != nil {
		return err
	}

	sink, err := logging.OpenFile(cfg.Logging.File)
	if err != nil {
		return err
	}
	logger, err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format, sink)
	if err != nil {
		_ = sink.Close()
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.logSink = sink
	return nil
}
