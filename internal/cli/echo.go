package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hedgehog/internal/bridge"
	"github.com/ppiankov/hedgehog/internal/config"
	"github.com/ppiankov/hedgehog/internal/service"
)

func newEchoCmd() *cobra.Command {
	var (
		times       int
		step        uint32
		cooperative bool
	)

	cmd := &cobra.Command{
		Use:   "echo N",
		Short: "Send N to the echo service through a bridge and print each folded state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("parse N: %w", err)
			}
			if times < 1 {
				return fmt.Errorf("--times must be at least 1")
			}

			s, err := config.LoadSettings(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("step") {
				s.EchoStep = step
			}
			if cmd.Flags().Changed("cooperative") && cooperative {
				s.Runner = config.RunnerCooperative
			}

			h, err := newHost(s.Runner)
			if err != nil {
				return err
			}
			defer h.shutdown()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			b := bridge.New[service.Message, uint32](service.Start(h.runner, service.Config{Step: s.EchoStep}), h.runner)
			defer b.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < times; i++ {
				if err := b.Send(service.Echo{N: uint32(n)}, sumEcho); err != nil {
					return err
				}
				snap, err := await(ctx, h, b, s.TickInterval)
				if err != nil {
					return err
				}
				if snap.Kind == bridge.Error {
					return fmt.Errorf("echo %d: %s", i+1, snap.Err)
				}
				fmt.Fprintf(out, "%d: %s %d\n", i+1, snap.Kind, snap.Value)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&times, "times", 1, "number of requests to send")
	cmd.Flags().Uint32Var(&step, "step", 0, "echo step (default from config)")
	cmd.Flags().BoolVar(&cooperative, "cooperative", false, "run workers on the cooperative loop")

	return cmd
}

// sumEcho adds the echoed value to the previous total.
func sumEcho(reply service.Message, prior bridge.Option[uint32]) (uint32, error) {
	e, ok := reply.(service.Echo)
	if !ok {
		return 0, fmt.Errorf("unexpected reply %T", reply)
	}
	return prior.OrElse(0) + e.N, nil
}
