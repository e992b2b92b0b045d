package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/config"
	"github.com/iliyamo/seat-block-booking/internal/database"
	"github.com/iliyamo/seat-block-booking/internal/handler"
	"github.com/iliyamo/seat-block-booking/internal/logger"
	"github.com/iliyamo/seat-block-booking/internal/middleware"
	"github.com/iliyamo/seat-block-booking/internal/queue"
	"github.com/iliyamo/seat-block-booking/internal/repository"
	"github.com/iliyamo/seat-block-booking/internal/router"
	"github.com/iliyamo/seat-block-booking/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		migrateUp   bool
		runConsumer bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, err := database.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if migrateUp {
				if err := database.Migrate(ctx, db); err != nil {
					return err
				}
			}

			rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
			if rdb != nil {
				defer rdb.Close()
			}
			cacheCfg := config.LoadCacheConfig()

			svc, err := service.NewBookingService(cfg.RowCapacities, cfg.MaxBooking, log)
			if err != nil {
				return err
			}
			bookings := repository.NewBookingRepo(db)
			svc.Recorder = bookings
			svc.Events = queue.NewPublisher(cfg.AMQPURL, log)
			if inv := middleware.NewRedisCacheInvalidator(rdb, cacheCfg.Prefix); inv != nil {
				svc.Cache = inv
			}

			if runConsumer {
				go func() {
					err := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir, log).Run(ctx)
					if err != nil && !errors.Is(err, context.Canceled) {
						log.Error("booking consumer stopped", zap.Error(err))
					}
				}()
			}

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(echomw.RequestID())
			e.Use(echomw.Recover())
			e.Use(middleware.RequestLogger(log))

			router.RegisterRoutes(e)
			router.RegisterAuth(e,
				handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log),
				cfg.JWTSecret)
			router.RegisterVenue(e,
				handler.NewVenueHandler(svc, bookings, log),
				cfg.JWTSecret,
				router.VenueMiddleware{
					Cache:     middleware.NewRedisCache(cacheCfg, rdb, log),
					RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
				})

			return start(ctx, e, ":"+cfg.Port, log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "create missing tables on startup")
	cmd.Flags().BoolVar(&runConsumer, "consumer", false, "also run the booking log consumer in-process")
	return cmd
}

// start serves until ctx is done, then drains in-flight requests for up to
// ten seconds.
func start(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
