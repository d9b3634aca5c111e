package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/komuness/core/internal/config"
	"github.com/komuness/core/internal/database"
	"github.com/komuness/core/internal/modules/publication"
	"github.com/komuness/core/internal/modules/storage/upload"
	"gorm.io/gorm"
)

// backend is the selected publication store with its liveness probe.
type backend struct {
	driver string
	store  publication.Store
	ping   func(ctx context.Context) error
	close  func(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg *config.AppConfig) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &backend{
			driver: config.DriverMongo,
			store:  publication.NewMongoStore(db.Collection(database.PublicationsCollection)),
			ping:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:  func(ctx context.Context) error { return client.Disconnect(ctx) },
		}, nil
	default:
		db, err := database.Connect(cfg, true)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &backend{
			driver: config.DriverMySQL,
			store:  publication.NewGormStore(db),
			ping:   func(context.Context) error { return database.Ping(db) },
			close:  func(context.Context) error { return closeSQL(db) },
		}, nil
	}
}

func closeSQL(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// openStorage returns the upload backend. The local store is also returned so
// its files can be served over HTTP.
func openStorage(cfg *config.AppConfig) (upload.Storage, *upload.LocalStorage, error) {
	limits := upload.Limits{
		MaxBytes:       cfg.MaxUploadBytes(),
		AllowedFormats: cfg.Storage.AllowedFormats,
	}
	if strings.EqualFold(cfg.Storage.Driver, config.StorageS3) {
		s3cfg := cfg.Storage.S3
		s, err := upload.NewS3Storage(upload.S3Config{
			Endpoint:        s3cfg.Endpoint,
			Region:          s3cfg.Region,
			Bucket:          s3cfg.Bucket,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			CustomDomain:    s3cfg.CustomDomain,
			Prefix:          s3cfg.Prefix,
			PathStyle:       s3cfg.PathStyle,
		}, limits)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}

	local, err := upload.NewLocalStorage(cfg.UploadDir(), cfg.Storage.PublicBaseURL, limits)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}
