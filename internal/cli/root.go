package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/hedgehog/internal/config"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
	logFile    string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hedgehog",
		Short: "Terminal client driving background workers through request bridges",
		Long: `hedgehog is a terminal client whose UI loop never blocks: every request to a
background worker goes through a bridge that is pumped once per frame and
folds the reply into state when it arrives.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeLogging(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "path to config file")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this rotating file instead of stderr")

	root.AddCommand(newUICmd())
	root.AddCommand(newEchoCmd())
	root.AddCommand(newRegisterCmd())
	root.AddCommand(newVersionCmd())

	return root
}
