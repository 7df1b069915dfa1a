package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodgram/api/internal/config"
	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/events"
	"github.com/foodgram/api/internal/notify"
	"github.com/foodgram/api/internal/payment"
	"github.com/foodgram/api/internal/realtime"
	"github.com/foodgram/api/internal/router"
	"github.com/foodgram/api/internal/service"
	"github.com/foodgram/api/internal/telegram"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, err := cmd.Flags().GetBool("migrate")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, loaded, migrate || loaded.RunMigrations)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := zap.L()

	pool, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, 10, 2*time.Second)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	queries := database.New(pool)

	hub := realtime.NewHub()
	go hub.Run(ctx)

	// Realtime fan-out goes through Redis when configured so every replica's
	// sockets see every event.
	var publisher service.Publisher = hub
	if cfg.RedisAddr != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()

		bridge := realtime.NewRedisBridge(hub, client, "")
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("redis bridge stopped", zap.Error(err))
			}
		}()
		publisher = bridge
	}

	var orderEvents interface {
		service.EventPublisher
		Close() error
	} = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		if err != nil {
			return err
		}
		orderEvents = kp
	}
	defer orderEvents.Close() //nolint:errcheck

	var provider payment.Provider = payment.Offline{}
	if cfg.StripeSecretKey != "" {
		provider = payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Currency)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, card payments are recorded offline")
	}

	customerBot := newBot(cfg.TelegramCustomerBotToken, "customer")
	deliveryBot := newBot(cfg.TelegramDeliveryBotToken, "delivery")

	deps := service.Deps{
		Payments:  provider,
		Notifier:  notify.NewDispatcher(queries, publisher, customerBot, deliveryBot),
		Events:    orderEvents,
		Publisher: publisher,
	}

	orders := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, cfg.DeliveryFeeAmount(), deps)

	deliveries := service.NewDeliveryService(pool, queries, func(db database.DBTX) service.DeliveryStore {
		return database.New(db)
	}, cfg.DemoAccount(), deps)

	r := router.New(cfg, queries, router.Services{
		Orders:     orders,
		Deliveries: deliveries,
		Webhooks:   provider,
		Hub:        hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBot returns nil when the token is empty or the bot cannot start, so
// notifications skip that channel.
func newBot(token, name string) telegram.Sender {
	if token == "" {
		return nil
	}
	bot, err := telegram.NewBot(token)
	if err != nil {
		zap.L().Warn("telegram bot disabled", zap.String("bot", name), zap.Error(err))
		return nil
	}
	return bot
}
