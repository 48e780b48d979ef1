package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// Ensure TxRunner implements ledger.TxRunner.
var _ ledger.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL. Los
// locks de fila (SELECT FOR UPDATE) que toma el callback viven hasta el
// Commit/Rollback, que es el límite de atomicidad de un traslado.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	warehouseRepo repository.WarehouseRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	movRepo := NewMovementRepository(tx)
	balanceRepo := NewBalanceRepository(tx)
	warehouseRepo := NewWarehouseRepository(tx)

	if err := fn(movRepo, balanceRepo, warehouseRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}
