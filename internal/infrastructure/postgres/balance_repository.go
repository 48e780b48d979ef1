package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo implementación de BalanceRepository sobre PostgreSQL
// (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

const balanceColumns = `product_id, warehouse_id, quantity_on_hand, weighted_average_cost, last_movement_id, updated_at`

// Get obtiene el saldo actual; nil si la fila nunca fue creada.
func (r *BalanceRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM warehouse_balances WHERE product_id = $1 AND warehouse_id = $2`
	b, err := scanBalance(r.q.QueryRow(ctx, query, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get balance", err)
	}
	return b, nil
}

// GetForUpdate obtiene el saldo y bloquea la fila (SELECT FOR UPDATE).
// La fila se materializa primero si no existe: FOR UPDATE sobre una fila
// inexistente no bloquea nada, y dos primeros movimientos concurrentes del
// par leerían ambos un saldo en cero sin serializarse entre sí.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.WarehouseBalance, error) {
	insert := `
		INSERT INTO warehouse_balances (product_id, warehouse_id, quantity_on_hand, weighted_average_cost, last_movement_id, updated_at)
		VALUES ($1, $2, 0, 0, 0, now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, productID, warehouseID); err != nil {
		return nil, storageErr("init balance row", err)
	}

	query := `SELECT ` + balanceColumns + `
		FROM warehouse_balances WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	b, err := scanBalance(r.q.QueryRow(ctx, query, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.WarehouseBalance{
				ProductID:           productID,
				WarehouseID:         warehouseID,
				WeightedAverageCost: decimal.Zero,
				UpdatedAt:           time.Now(),
			}, nil
		}
		return nil, storageErr("get balance for update", err)
	}
	return b, nil
}

// Upsert inserta o actualiza la fila de saldo por producto y bodega.
func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.WarehouseBalance) error {
	query := `
		INSERT INTO warehouse_balances (product_id, warehouse_id, quantity_on_hand, weighted_average_cost, last_movement_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity_on_hand = EXCLUDED.quantity_on_hand,
			weighted_average_cost = EXCLUDED.weighted_average_cost,
			last_movement_id = EXCLUDED.last_movement_id,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		b.ProductID, b.WarehouseID, b.QuantityOnHand, b.WeightedAverageCost, b.LastMovementID, b.UpdatedAt)
	if err != nil {
		return storageErr("upsert balance", err)
	}
	return nil
}

// ListByProduct lista los saldos de un producto en todas las bodegas.
func (r *BalanceRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.WarehouseBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM warehouse_balances WHERE product_id = $1 ORDER BY warehouse_id`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, storageErr("list balances by product", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

// ListByWarehouse lista los saldos de una bodega con paginación.
func (r *BalanceRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.WarehouseBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM warehouse_balances WHERE warehouse_id = $1 ORDER BY product_id LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, warehouseID, limit, offset)
	if err != nil {
		return nil, storageErr("list balances by warehouse", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

func scanBalance(row pgx.Row) (*entity.WarehouseBalance, error) {
	var b entity.WarehouseBalance
	err := row.Scan(&b.ProductID, &b.WarehouseID, &b.QuantityOnHand,
		&b.WeightedAverageCost, &b.LastMovementID, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBalances(rows pgx.Rows) ([]*entity.WarehouseBalance, error) {
	var list []*entity.WarehouseBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, storageErr("scan balance", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
