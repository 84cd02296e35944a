package config

import (
	"context"
	"fmt"

	"github.com/blinkhost/blink/pkg/blob"
	blobdual "github.com/blinkhost/blink/pkg/blob/dual"
	blobfs "github.com/blinkhost/blink/pkg/blob/fs"
	blobs3 "github.com/blinkhost/blink/pkg/blob/s3"
	"github.com/blinkhost/blink/pkg/core"
	"github.com/blinkhost/blink/pkg/index"
	indexbadger "github.com/blinkhost/blink/pkg/index/badger"
	indexmemory "github.com/blinkhost/blink/pkg/index/memory"
	indexpostgres "github.com/blinkhost/blink/pkg/index/postgres"
)

// CreateBlobStore creates a blob store instance from configuration.
//
// A single backend is wrapped directly; two backends compose into a dual
// store where the first receives synchronous writes and the second
// asynchronous replica writes.
func CreateBlobStore(ctx context.Context, cfg *Config) (blob.Store, error) {
	backends, err := cfg.Blob.Backends()
	if err != nil {
		return nil, err
	}

	adapters := make([]blob.Adapter, 0, len(backends))
	for _, b := range backends {
		a, err := createBlobAdapter(ctx, b, cfg)
		if err != nil {
			// Release adapters already opened for this store.
			for _, opened := range adapters {
				_ = opened.Close()
			}
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if len(adapters) == 1 {
		return blob.NewStore(adapters[0]), nil
	}
	return blobdual.New(adapters[0], adapters[1]), nil
}

func createBlobAdapter(ctx context.Context, backend string, cfg *Config) (blob.Adapter, error) {
	switch backend {
	case "local":
		fsCfg := blobfs.DefaultConfig(cfg.Blob.Local.Path)
		fsCfg.MaxBlobBytes = cfg.Upload.MaxUploadSize.Int64()
		a, err := blobfs.New(fsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open local blob store: %w", err)
		}
		return a, nil
	case "s3":
		a, err := blobs3.NewFromConfig(ctx, cfg.Blob.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 blob store: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", backend)
	}
}

// CreateIndex creates a metadata index instance from configuration.
func CreateIndex(ctx context.Context, cfg *Config) (index.Index, error) {
	switch cfg.Index.Store {
	case "memory":
		return indexmemory.New(), nil
	case "badger":
		bCfg := indexbadger.DefaultConfig(cfg.Index.Badger.Path)
		if cfg.Index.Badger.SyncWrites != nil {
			bCfg.SyncWrites = *cfg.Index.Badger.SyncWrites
		}
		idx, err := indexbadger.New(bCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger index: %w", err)
		}
		return idx, nil
	case "postgres":
		pgCfg := cfg.Index.Postgres
		idx, err := indexpostgres.New(ctx, &pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres index: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index backend: %q", cfg.Index.Store)
	}
}

// ServiceConfig translates the upload policy section into the core service
// configuration, expanding accepted-type shorthands.
func (c *Config) ServiceConfig() (core.Config, error) {
	accepted, err := ExpandFileTypes(c.Upload.AcceptedFileTypes)
	if err != nil {
		return core.Config{}, err
	}

	return core.Config{
		AcceptedTypes:  accepted,
		MaxUploadBytes: c.Upload.MaxUploadSize.Int64(),
		URLTTL:         c.Upload.URLTTL,
		SkewTolerance:  c.Upload.ClockSkewTolerance,
	}, nil
}
