package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/amqpx"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/libs/mail"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/delivery"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if config.Bool("DB_AUTO_MIGRATE", true) {
		if err := pool.Migrate(ctx, inbox.Schema, storage.Schema); err != nil {
			logger.Error("db migrate failed", "err", err)
			panic(err)
		}
	}

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	mailer := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     config.String("SMTP_HOST", "mailpit"),
		Port:     config.String("SMTP_PORT", "1025"),
		From:     config.String("SMTP_FROM", "no-reply@slotbook.local"),
		Username: config.String("SMTP_USERNAME", ""),
		Password: config.String("SMTP_PASSWORD", ""),
	})
	handler := delivery.NewHandler(mailer, notificationsRepo, logger, config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  config.List("KAFKA_CONSUME_TOPICS", events.Topics()),
		}, handler.Handle)
		go eventConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	if url := config.String("AMQP_URL", ""); url != "" {
		ch, err := amqpx.Dial(url, config.String("AMQP_QUEUE", "booking.notifications"))
		if err != nil {
			logger.Error("amqp dial failed", "err", err)
			panic(err)
		}
		defer ch.Close()
		prefetch, err := config.Int("AMQP_PREFETCH", 10)
		if err != nil {
			panic(err)
		}
		go consumer.NewQueueConsumer(logger, inboxRepo, ch, prefetch, handler.HandlePayload).Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "amqp", Check: ch.ReadyCheck()})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.Serve(ctx, srv, logger, 10*time.Second)
}
