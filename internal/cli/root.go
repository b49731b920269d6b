// Package cli implements the brs-dap command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ctagard/brs-dap/internal/config"
	"github.com/ctagard/brs-dap/internal/log"
)

// app carries what every command needs once the root command has run.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "brs-dap",
		Short: "Debug adapter for BrightScript channels on Roku devices",
		Long: `brs-dap speaks the Debug Adapter Protocol to IDEs and drives a Roku
device's debugger. Breakpoints are compiled into a staged copy of the
channel as STOP statements; stack traces are mapped back to your sources.

Run 'brs-dap serve' from your IDE's debug adapter configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a JSON or YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStageCmd(a))
	cmd.AddCommand(newConfigsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = log.New(log.FromEnv(&cfg.Log))
	return nil
}
