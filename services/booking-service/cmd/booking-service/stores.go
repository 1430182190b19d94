package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/mongox"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/locker"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	slots   storage.SlotStore
	appts   storage.AppointmentStore
	checks  []runtime.ReadyCheck
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the backend selected by STORE_DRIVER (memory, postgres or mongo).
func openStores(ctx context.Context, logger *slog.Logger) (*stores, error) {
	driver := strings.ToLower(config.String("STORE_DRIVER", "memory"))
	switch driver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return &stores{
			slots: storage.NewMemorySlotStore(),
			appts: storage.NewMemoryAppointmentStore(),
		}, nil

	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 10)
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: int32(maxConns)})
		if err != nil {
			return nil, fmt.Errorf("db connection failed: %w", err)
		}
		if config.Bool("DB_AUTO_MIGRATE", true) {
			if err := pool.Migrate(ctx, storage.Schema...); err != nil {
				pool.Close()
				return nil, fmt.Errorf("db migrate failed: %w", err)
			}
		}
		return &stores{
			slots:   storage.NewPostgresSlotStore(pool),
			appts:   storage.NewPostgresAppointmentStore(pool),
			checks:  []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
			closers: []func(){pool.Close},
		}, nil

	case "mongo":
		uri, err := config.RequiredString("MONGO_URI")
		if err != nil {
			return nil, err
		}
		client, err := mongox.Connect(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		dbName := config.String("MONGO_DB", "slotbook")
		slots := storage.NewMongoSlotStore(client, dbName)
		appts := storage.NewMongoAppointmentStore(client, dbName)
		if err := slots.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo slot indexes: %w", err)
		}
		if err := appts.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo appointment indexes: %w", err)
		}
		return &stores{
			slots:  slots,
			appts:  appts,
			checks: []runtime.ReadyCheck{{Name: "mongo", Check: mongox.ReadyCheck(client)}},
			closers: []func(){func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			}},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
}

// decorateSlots layers the optional per-slot lock (SLOT_LOCK) and the availability cache
// (SLOT_CACHE_TTL, needs Redis) over the base slot store.
func decorateSlots(slots storage.SlotStore, rdb *redis.Client, logger *slog.Logger) (storage.SlotStore, error) {
	switch mode := strings.ToLower(config.String("SLOT_LOCK", "none")); mode {
	case "none", "":
	case "local":
		slots = storage.NewSerialized(slots, locker.NewLocal())
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("SLOT_LOCK=redis requires REDIS_ADDR")
		}
		ttl, err := config.Duration("SLOT_LOCK_TTL", 5*time.Second)
		if err != nil {
			return nil, err
		}
		slots = storage.NewSerialized(slots, locker.NewRedis(rdb, "slotbook:lock", ttl, logger))
	default:
		return nil, fmt.Errorf("unknown SLOT_LOCK %q", mode)
	}

	cacheTTL, err := config.Duration("SLOT_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	if rdb != nil && cacheTTL > 0 {
		slots = storage.NewCachedSlotStore(slots, rdb, cacheTTL, logger)
	}
	return slots, nil
}
