package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/mongox"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/export"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		fatal(err.Error())
	}
	var (
		driver = flag.String("driver", config.String("STORE_DRIVER", "postgres"), "appointment store: postgres or mongo")
		out    = flag.String("out", "-", "CSV destination file; - writes to stdout")
		upload = flag.Bool("minio", false, "upload to MINIO_BUCKET instead of writing a file")
	)
	flag.Parse()

	logger := runtime.NewLogger("booking-export")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	appts, closeStore, err := openAppointments(ctx, strings.ToLower(*driver))
	if err != nil {
		fatal(err.Error())
	}
	defer closeStore()
	exports := export.NewService(appts)

	if *upload {
		bucket := config.String("MINIO_BUCKET", "booking-exports")
		endpoint, err := config.RequiredString("MINIO_ENDPOINT")
		if err != nil {
			fatal(err.Error())
		}
		archiver, err := export.NewMinioArchiver(ctx, export.MinioConfig{
			Endpoint:  endpoint,
			AccessKey: config.String("MINIO_ACCESS_KEY", ""),
			SecretKey: config.String("MINIO_SECRET_KEY", ""),
			Bucket:    bucket,
			UseSSL:    config.Bool("MINIO_USE_SSL", false),
		})
		if err != nil {
			fatal(err.Error())
		}
		key, err := exports.Archive(ctx, archiver, bucket, time.Now())
		if err != nil {
			fatal(err.Error())
		}
		logger.Info("export uploaded", "bucket", bucket, "key", key)
		return
	}

	rows, err := exports.ExportAll(ctx)
	if err != nil {
		fatal(err.Error())
	}
	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fatal(err.Error())
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteCSV(w, rows); err != nil {
		fatal(err.Error())
	}
	if *out != "-" {
		logger.Info("export written", "rows", len(rows), "out", *out)
	}
}

func openAppointments(ctx context.Context, driver string) (storage.AppointmentStore, func(), error) {
	switch driver {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, nil, err
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPostgresAppointmentStore(pool), pool.Close, nil
	case "mongo":
		uri, err := config.RequiredString("MONGO_URI")
		if err != nil {
			return nil, nil, err
		}
		client, err := mongox.Connect(ctx, uri)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewMongoAppointmentStore(client, config.String("MONGO_DB", "slotbook"))
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unsupported driver %q", driver)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
