// Package persistence keeps the ledger durable: it loads the snapshot at
// startup and writes a full snapshot after every mutation and at shutdown.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/ledger"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/snapshots"
)

// Saver is what mutating callers depend on.
type Saver interface {
	Save(ctx context.Context, l *ledger.Ledger) error
}

type Manager struct {
	repo   snapshots.Repository
	logger logging.Logger
	now    func() time.Time

	// serializes saves; the ledger is snapshotted inside the section so the
	// last finished save reflects every mutation completed before it began.
	mu sync.Mutex
	// set when the snapshot could not be read at startup. Saves are refused
	// while it is set, since they would replace a snapshot nobody loaded.
	unverified bool
}

func NewManager(repo snapshots.Repository, logger logging.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger.With("module", "persistence", "backend", repo.Name()),
		now:    time.Now,
	}
}

// Load reads the snapshot and builds a ledger from it. A missing snapshot
// gives an empty ledger. An unreadable or corrupt one is logged at ERROR
// and also gives an empty ledger, so the server still starts.
func (m *Manager) Load(ctx context.Context, opts ...ledger.Option) *ledger.Ledger {
	data, err := m.repo.Load(ctx)
	m.mu.Lock()
	m.unverified = err != nil && !errors.Is(err, snapshots.ErrNotExist)
	m.mu.Unlock()
	if err != nil {
		if errors.Is(err, snapshots.ErrNotExist) {
			m.logger.Info(ctx, "No snapshot found, starting with an empty ledger")
			return ledger.New(opts...)
		}
		m.logger.Error(ctx, "Snapshot unreadable, starting with an empty ledger; saves are held until it can be checked",
			"error", err.Error())
		return ledger.New(opts...)
	}

	accounts, err := snapshots.Decode(data)
	if err != nil {
		m.logger.Error(ctx, "Snapshot corrupt, starting with an empty ledger", "error", err.Error(), "bytes", len(data))
		m.quarantine(ctx)
		return ledger.New(opts...)
	}

	m.logger.Info(ctx, "Snapshot loaded", "accounts", len(accounts))
	return ledger.Restore(accounts, opts...)
}

// quarantine keeps a corrupt snapshot for inspection when the backend
// supports it; otherwise the next save replaces it.
func (m *Manager) quarantine(ctx context.Context) {
	q, ok := m.repo.(snapshots.Quarantiner)
	if !ok {
		m.logger.Warn(ctx, "Corrupt snapshot will be overwritten by the next save")
		return
	}
	moved, err := q.Quarantine(ctx, "corrupt-"+m.now().UTC().Format("20060102T150405Z"))
	if err != nil {
		m.logger.Error(ctx, "Could not move corrupt snapshot aside", "error", err.Error())
		return
	}
	m.logger.Warn(ctx, "Corrupt snapshot moved aside", "path", moved)
}

func (m *Manager) checkOverwriteLocked(ctx context.Context) error {
	_, err := m.repo.Load(ctx)
	switch {
	case errors.Is(err, snapshots.ErrNotExist):
		m.unverified = false
		m.logger.Warn(ctx, "Snapshot backend readable again and empty, saves resumed")
		return nil
	case err != nil:
		return fmt.Errorf("snapshot still unreadable: %w", err)
	default:
		return errors.New("a snapshot this server never loaded exists, not overwriting it")
	}
}

// Save writes a full snapshot of l. Failures are logged at ERROR and
// returned wrapped in common.ErrPersistence; the in-memory state is not
// rolled back.
//
// After a startup read failure the backend is probed first: saving resumes
// once it reports no snapshot, and stays refused while a snapshot exists
// that this process never loaded. Recovering that one needs a restart.
func (m *Manager) Save(ctx context.Context, l *ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unverified {
		if err := m.checkOverwriteLocked(ctx); err != nil {
			m.logger.Error(ctx, "Snapshot save refused", "error", err.Error())
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	accounts := l.Snapshot()
	data, err := snapshots.Encode(accounts, m.now())
	if err != nil {
		m.logger.Error(ctx, "Snapshot encode failed", "error", err.Error())
		return err
	}

	if err := m.repo.Save(ctx, data); err != nil {
		m.logger.Error(ctx, "Snapshot save failed", "error", err.Error())
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	m.logger.Debug(ctx, "Snapshot saved", "accounts", len(accounts), "bytes", len(data))
	return nil
}
