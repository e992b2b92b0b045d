package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/config"
	"github.com/iliyamo/seat-block-booking/internal/logger"
	"github.com/iliyamo/seat-block-booking/internal/queue"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Append broker booking events to the booking log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConsumer()
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Info("consumer starting", zap.String("log_dir", cfg.BookingLogDir))
			err = queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
