package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// snapshotRowID is the primary key of the single live snapshot row.
const snapshotRowID = 1

// PostgresRepository stores the document in the ledger_snapshots table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (r *PostgresRepository) Name() string { return "postgres" }

func (r *PostgresRepository) Load(ctx context.Context) ([]byte, error) {
	query := `SELECT payload FROM ledger_snapshots WHERE id = $1`

	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, snapshotRowID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return payload, nil
}

func (r *PostgresRepository) Save(ctx context.Context, data []byte) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_snapshots WHERE id = $1`, snapshotRowID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		query := `
			INSERT INTO ledger_snapshots (id, version, payload, saved_at)
			VALUES ($1, $2, $3, now())
		`
		if _, err := tx.ExecContext(ctx, query, snapshotRowID, FormatVersion, string(data)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}
