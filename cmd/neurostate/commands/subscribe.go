package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/LucaChot/neurostate/src/publish"
)

var (
	subAddr    string
	subSession string
	subCount   int
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Print beliefs published by a running decoder",
	RunE:  runSubscribe,
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := publish.Dial(subAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	sub, err := c.Subscribe(ctx, subSession)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for n := 0; subCount <= 0 || n < subCount; n++ {
		b, err := sub.Recv()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "%s %d %s %d %s\n", b.Session, b.Seq, b.Time.Format("15:04:05.000"), argmax(b.Probs), formatFloats(b.Probs))
	}
	return nil
}

func init() {
	subscribeCmd.Flags().StringVar(&subAddr, "addr", "localhost:50051", "publisher address")
	subscribeCmd.Flags().StringVar(&subSession, "session", "", "only this session")
	subscribeCmd.Flags().IntVarP(&subCount, "count", "n", 0, "stop after n beliefs, 0 for no limit")
	rootCmd.AddCommand(subscribeCmd)
}
