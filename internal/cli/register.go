package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hedgehog/internal/app"
	"github.com/ppiankov/hedgehog/internal/auth"
	"github.com/ppiankov/hedgehog/internal/bridge"
	"github.com/ppiankov/hedgehog/internal/config"
	"github.com/ppiankov/hedgehog/internal/store"
)

func newRegisterCmd() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "register INSTANCE",
		Short: "Register hedgehog on an instance and sign in with an authorization code",
		Long: `register creates an application on INSTANCE, prints the page on which to
authorize it, reads the code shown there from stdin and verifies it.
The instance and account are saved for the next ui session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings(configFile)
			if err != nil {
				return err
			}

			h, err := newHost(s.Runner)
			if err != nil {
				return err
			}
			defer h.shutdown()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client := auth.NewClient(s.ClientName, userAgent())
			b := bridge.New[auth.Message, app.AuthSession](auth.Start(h.runner, client), h.runner)
			defer b.Close()

			sess, err := runRegister(ctx, h, b, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s on %s\n", sess.Username, sess.Instance)

			if noSave {
				return nil
			}
			st, err := store.Open(s.DatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			fields, err := st.LoadFields(ctx)
			if err != nil {
				return err
			}
			fields.Instance = sess.Instance
			fields.Username = sess.Username
			if err := st.SaveFields(ctx, fields); err != nil {
				return err
			}
			slog.Debug("saved account", "db", st.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the instance and account")

	return cmd
}

func runRegister(ctx context.Context, h *host, b *bridge.Bridge[auth.Message, app.AuthSession], instance string, in io.Reader, out io.Writer, s *config.Settings) (app.AuthSession, error) {
	if err := b.Send(auth.Initialize{Instance: instance}, app.FoldAuth); err != nil {
		return app.AuthSession{}, err
	}
	snap, err := await(ctx, h, b, s.TickInterval)
	if err != nil {
		return app.AuthSession{}, err
	}
	if snap.Kind == bridge.Error {
		return app.AuthSession{}, fmt.Errorf("register: %s", snap.Err)
	}

	fmt.Fprintf(out, "open this page and authorize hedgehog:\n\n  %s\n\ncode: ", snap.Value.AuthorizeURL)
	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && code == "" {
		return app.AuthSession{}, fmt.Errorf("read code: %w", err)
	}
	code = strings.TrimSpace(code)

	if err := b.Send(auth.SubmitCode{Code: code}, app.FoldAuth); err != nil {
		return app.AuthSession{}, err
	}
	snap, err = await(ctx, h, b, s.TickInterval)
	if err != nil {
		return app.AuthSession{}, err
	}
	if snap.Kind == bridge.Error {
		return app.AuthSession{}, fmt.Errorf("sign in: %s", snap.Err)
	}
	return snap.Value, nil
}
