package core

import (
	"context"

	"incidentcore/internal/config"
	"incidentcore/internal/infra/persistence/file"
	"incidentcore/internal/infra/persistence/memory"
	"incidentcore/internal/infra/persistence/postgres"
	"incidentcore/internal/infra/persistence/s3"
	"incidentcore/internal/infra/persistence/sqlite"
	"incidentcore/pkg/domain"
)

// StorageDriver identifies a concrete document store implementation.
type StorageDriver string

const (
	StorageFile     StorageDriver = "file"     // single JSON file
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageS3       StorageDriver = "s3"       // one object in an S3-compatible bucket
)

// OpenDocumentStore builds the backend selected by cfg.Driver; an empty
// driver selects the file store.
func OpenDocumentStore(ctx context.Context, cfg config.Storage) (domain.DocumentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		return opened(file.NewStore(cfg.FilePath))
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return opened(sqlite.NewStore(cfg.SQLitePath))
	case StoragePostgres:
		return opened(postgres.NewStore(ctx, cfg.PostgresDSN))
	case StorageS3:
		return opened(s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Key:       cfg.S3.Key,
			PathStyle: cfg.S3.PathStyle,
		}))
	default:
		return nil, domain.InvalidArgument("open store", "unknown storage driver %q", cfg.Driver)
	}
}

// opened keeps a failed constructor's typed nil out of the interface.
func opened[S domain.DocumentStore](store S, err error) (domain.DocumentStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
