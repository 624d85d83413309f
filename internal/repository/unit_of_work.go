package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/db"
)

// pgxStore binds the hierarchy repositories to a single Querier, which may be
// the pool, a transaction, or a savepoint scope.
type pgxStore struct {
	sites       SiteRepository
	cells       CellRepository
	equipment   EquipmentRepository
	controllers ControllerRepository
}

func newPgxStore(q db.Querier) *pgxStore {
	return &pgxStore{
		sites:       &siteRepository{q: q},
		cells:       &cellRepository{q: q},
		equipment:   &equipmentRepository{q: q},
		controllers: &controllerRepository{q: q},
	}
}

func (s *pgxStore) Sites() SiteRepository             { return s.sites }
func (s *pgxStore) Cells() CellRepository             { return s.cells }
func (s *pgxStore) Equipment() EquipmentRepository    { return s.equipment }
func (s *pgxStore) Controllers() ControllerRepository { return s.controllers }

type pgxTx struct {
	*pgxStore
	tx pgx.Tx
}

// Savepoint opens a nested transaction (pgx issues SAVEPOINT under the hood),
// runs fn against it, and rolls the savepoint back when fn fails.
func (t *pgxTx) Savepoint(ctx context.Context, fn func(Store) error) error {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if err := fn(newPgxStore(nested)); err != nil {
		if rbErr := nested.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("savepoint error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := nested.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

type unitOfWork struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewUnitOfWork wires the pgx-backed persistence boundary.
func NewUnitOfWork(pool *pgxpool.Pool, logger *zap.Logger) UnitOfWork {
	return &unitOfWork{pool: pool, logger: logger}
}

// Store returns a pool-backed store for reads outside any transaction.
func (u *unitOfWork) Store() Store {
	return newPgxStore(u.pool)
}

// WithTx executes fn within a single database transaction.
func (u *unitOfWork) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				u.logger.Error("Failed to rollback transaction after panic", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(&pgxTx{pgxStore: newPgxStore(tx), tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
