package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/redisx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/export"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/workflow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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

	if err := run(ctx, logger, port); err != nil {
		logger.Error("booking service failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, port string) error {
	st, err := openStores(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close()
	checks := append([]runtime.ReadyCheck{}, st.checks...)

	rdb, err := redisx.Open(ctx, redisx.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
	})
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	slots, err := decorateSlots(st.slots, rdb, logger)
	if err != nil {
		return err
	}
	appts := st.appts

	if config.Bool("SEED_SLOTS", true) {
		days, err := config.Int("SEED_DAYS", 7)
		if err != nil {
			return err
		}
		created, err := catalog.Seed(ctx, slots, time.Now(), catalog.SeedConfig{
			Days: days,
			Time: config.String("SEED_TIME", "10:00 AM"),
		})
		if err != nil {
			return err
		}
		logger.Info("slots seeded", "created", created)
	}

	sender, err := openSender(logger)
	if err != nil {
		return err
	}
	defer sender.close()
	checks = append(checks, sender.checks...)

	workers, err := config.Int("NOTIFY_WORKERS", 4)
	if err != nil {
		return err
	}
	queueSize, err := config.Int("NOTIFY_QUEUE_SIZE", 256)
	if err != nil {
		return err
	}
	notifyTimeout, err := config.Duration("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(notify.NewSync(sender.sender), logger, notify.DispatcherConfig{
		Workers:   workers,
		QueueSize: queueSize,
		Timeout:   notifyTimeout,
	})
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			logger.Error("notification queue not drained", "err", err)
		}
	}()

	bookings := booking.NewService(slots, appts, dispatcher, logger)
	flow := workflow.NewService(slots, appts, dispatcher, logger)
	exports := export.NewService(appts)

	interval, err := config.Duration("RECONCILE_INTERVAL", time.Minute)
	if err != nil {
		return err
	}
	grace, err := config.Duration("RECONCILE_GRACE", 5*time.Minute)
	if err != nil {
		return err
	}
	if interval > 0 {
		go reconcile.NewWorker(slots, appts, logger, reconcile.WorkerConfig{Interval: interval, Grace: grace}).Run(ctx)
	}

	if err := startArchiver(ctx, exports, logger); err != nil {
		return err
	}

	operator, err := operatorGuard(logger)
	if err != nil {
		return err
	}
	bookingHandler := handlers.NewBookingHandler(slots, appts, bookings, flow, exports, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", bookingHandler.Routes(operator))
	login, err := operatorLogin()
	if err != nil {
		return err
	}
	if login != nil {
		mux.Handle("/api/auth/login", login)
	}

	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return err
	}
	var limiter httpx.Middleware
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "slotbook:rl").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rl := httpx.NewRateLimiter(limit, time.Minute)
		go rl.Run(ctx, 5*time.Minute)
		limiter = rl.Middleware()
	}

	bodyLimit, err := config.Int("HTTP_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return err
	}
	origins := config.List("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.BrowserCORSPolicy(origins)),
		limiter,
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.Serve(ctx, srv, logger, 10*time.Second)
	return nil
}

// operatorGuard returns the middleware protecting back-office routes. Without
// OPERATOR_JWT_SECRET the routes are left open, which only suits local development.
func operatorGuard(logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	secret := config.String("OPERATOR_JWT_SECRET", "")
	if secret == "" {
		logger.Warn("OPERATOR_JWT_SECRET not set; operator routes are unauthenticated")
		return nil, nil
	}
	if config.Bool("OPERATOR_PRINT_DEV_TOKEN", false) {
		token, err := auth.IssueHS256("dev-operator", "operator", 12*time.Hour, secret)
		if err != nil {
			return nil, err
		}
		logger.Info("development operator token issued", "token", token)
	}
	bearer := httpx.RequireBearer(secret)
	role := httpx.RequireRole("operator", "admin")
	return func(next http.Handler) http.Handler {
		return bearer(role(next))
	}, nil
}

// operatorLogin serves POST /api/auth/login for the accounts in OPERATOR_ACCOUNTS.
func operatorLogin() (http.Handler, error) {
	secret := config.String("OPERATOR_JWT_SECRET", "")
	entries := config.List("OPERATOR_ACCOUNTS", nil)
	if secret == "" || len(entries) == 0 {
		return nil, nil
	}
	accounts, err := handlers.ParseOperatorAccounts(entries)
	if err != nil {
		return nil, err
	}
	ttl, err := config.Duration("OPERATOR_TOKEN_TTL", 8*time.Hour)
	if err != nil {
		return nil, err
	}
	return handlers.NewOperatorLogin(accounts, secret, ttl), nil
}

// startArchiver uploads a CSV export to MinIO every EXPORT_ARCHIVE_INTERVAL when
// MINIO_ENDPOINT is configured.
func startArchiver(ctx context.Context, exports *export.Service, logger *slog.Logger) error {
	endpoint := config.String("MINIO_ENDPOINT", "")
	if endpoint == "" {
		return nil
	}
	every, err := config.Duration("EXPORT_ARCHIVE_INTERVAL", 24*time.Hour)
	if err != nil {
		return err
	}
	bucket := config.String("MINIO_BUCKET", "booking-exports")
	archiver, err := export.NewMinioArchiver(ctx, export.MinioConfig{
		Endpoint:  endpoint,
		AccessKey: config.String("MINIO_ACCESS_KEY", ""),
		SecretKey: config.String("MINIO_SECRET_KEY", ""),
		Bucket:    bucket,
		UseSSL:    config.Bool("MINIO_USE_SSL", false),
	})
	if err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				key, err := exports.Archive(ctx, archiver, bucket, time.Now())
				if err != nil {
					logger.Error("export archive failed", "err", err)
					continue
				}
				logger.Info("export archived", "bucket", bucket, "key", key)
			}
		}
	}()
	return nil
}
