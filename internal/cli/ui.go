package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hedgehog/internal/app"
	"github.com/ppiankov/hedgehog/internal/auth"
	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/config"
	"github.com/ppiankov/hedgehog/internal/service"
	"github.com/ppiankov/hedgehog/internal/store"
)

func newUICmd() *cobra.Command {
	var (
		cooperative bool
		noWatch     bool
	)

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI",
		Long: `ui starts the echo service and the terminal UI. Workers run on a background
pool, or with --cooperative on a loop advanced once per UI tick.

Logs go to a rotating file (--log-file, log.file in the config, or
<data_dir>/hedgehog.log) because the UI owns the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cooperative") && cooperative {
				s.Runner = config.RunnerCooperative
			}

			// --log-file is already installed by the root command
			if logFile == "" {
				lf := useLogFile(resolveLogFile(s), s.Log)
				defer func() { _ = lf.Close() }()
			}

			st, err := store.Open(s.DatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fields, err := st.LoadFields(ctx)
			if err != nil {
				return err
			}

			h, err := newHost(s.Runner)
			if err != nil {
				return err
			}
			defer h.shutdown()

			svc := service.Start(h.runner, service.Config{
				Step: s.EchoStep,
				Auth: auth.NewClient(s.ClientName, userAgent()),
			})

			if !noWatch {
				notify := svc.Clone()
				defer notify.Close()
				go watchStep(ctx, configFile, notify)
			}

			model := app.New(ctx, app.Config{
				Runner:  h.runner,
				Loop:    h.loop,
				Service: svc,
				Store:   st,
				Fields:  fields,
				Tick:    s.TickInterval,
			})
			slog.Info("starting ui", "runner", s.Runner, "tick", s.TickInterval, "db", st.Path())

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			final, err := p.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run ui: %w", err)
			}
			if m, ok := final.(app.Model); ok {
				// a killed program never saw a quit key
				if m = m.Finish(); m.SaveErr() != nil {
					return fmt.Errorf("save ui fields: %w", m.SaveErr())
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cooperative, "cooperative", false, "run workers on a loop driven by the UI tick")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")

	return cmd
}

// watchStep forwards echo_step changes in the config file to the service as
// notifications.
func watchStep(ctx context.Context, path string, tx *channel.Sender[service.Message]) {
	err := config.WatchSettings(ctx, path, func(s *config.Settings) {
		if err := tx.TrySend(channel.NewNotification[service.Message](service.Configure{Step: s.EchoStep})); err != nil {
			slog.Warn("forward config change", "error", err)
		}
	})
	if err != nil {
		slog.Warn("config watcher stopped", "error", err)
	}
}
