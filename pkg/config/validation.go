package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags cover the field-level rules (ranges, enumerations); the
// backend-specific requirements are checked here because they only apply
// to the selected backend.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if _, err := ExpandFileTypes(cfg.Upload.AcceptedFileTypes); err != nil {
		return err
	}

	backends, err := cfg.Blob.Backends()
	if err != nil {
		return err
	}
	for _, b := range backends {
		switch b {
		case "local":
			if cfg.Blob.Local.Path == "" {
				return fmt.Errorf("blob.local.path is required when the local backend is selected")
			}
		case "s3":
			if cfg.Blob.S3.Bucket == "" {
				return fmt.Errorf("blob.s3.bucket is required when the s3 backend is selected")
			}
		}
	}

	switch cfg.Index.Store {
	case "badger":
		if cfg.Index.Badger.Path == "" {
			return fmt.Errorf("index.badger.path is required when the badger backend is selected")
		}
	case "postgres":
		pg := cfg.Index.Postgres
		if pg.Host == "" || pg.Database == "" || pg.User == "" {
			return fmt.Errorf("index.postgres requires host, database and user")
		}
	}

	return nil
}

// Backends parses the blob store selector into an ordered backend list.
// One backend serves alone; with two, the first is primary and the second
// is the replica.
func (c *BlobConfig) Backends() ([]string, error) {
	parts := splitAndTrim(c.Store)
	if len(parts) == 0 {
		return nil, fmt.Errorf("blob.store must name at least one backend")
	}
	if len(parts) > 2 {
		return nil, fmt.Errorf("blob.store supports at most two backends, got %q", c.Store)
	}

	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if p != "local" && p != "s3" {
			return nil, fmt.Errorf("unknown blob backend %q (valid: local, s3)", p)
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("duplicate blob backend %q", p)
		}
		seen[p] = struct{}{}
	}

	return parts, nil
}
