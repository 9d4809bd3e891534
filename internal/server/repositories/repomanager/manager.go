// Package repomanager picks and opens the snapshot repository named in the
// server configuration.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/server/config"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/snapshots"
)

// Seams for tests.
var (
	openPostgres    = snapshots.OpenPostgres
	runMigrations   = snapshots.RunMigrations
	newS3Repository = snapshots.NewS3Repository
)

// RepositoryManager owns the chosen snapshot repository and whatever
// connection it needs.
type RepositoryManager struct {
	repo snapshots.Repository
	db   *sql.DB
}

// Open builds the repository for c.SnapshotBackend. The postgres backend
// connects and migrates the schema before returning.
func Open(ctx context.Context, c *config.Config) (*RepositoryManager, error) {
	switch c.SnapshotBackend {
	case config.BackendFile:
		return &RepositoryManager{repo: snapshots.NewFileRepository(c.SnapshotPath)}, nil

	case config.BackendPostgres:
		db, err := openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := runMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrations error: %w", err)
		}
		return &RepositoryManager{repo: snapshots.NewPostgresRepository(db), db: db}, nil

	case config.BackendS3:
		repo, err := newS3Repository(ctx, snapshots.S3Options{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Key:          c.S3Key,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return &RepositoryManager{repo: repo}, nil
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
}

func (m *RepositoryManager) Snapshots() snapshots.Repository {
	return m.repo
}

// Close releases the database connection, if any.
func (m *RepositoryManager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
