package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

// WarehouseRepo implementación del puerto WarehouseRepository sobre
// PostgreSQL (usable con pool o tx).
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador de persistencia para bodegas.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

const warehouseColumns = `id, code, name, address, capacity, occupied_capacity, created_at, updated_at`

// Create persiste una nueva bodega.
func (r *WarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	query := `
		INSERT INTO warehouses (id, code, name, address, capacity, occupied_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		w.ID, w.Code, w.Name, w.Address, w.Capacity, w.OccupiedCapacity, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return storageErr("insert warehouse", err)
	}
	return nil
}

// GetByID obtiene una bodega por ID; nil si no existe.
func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	query := `SELECT ` + warehouseColumns + ` FROM warehouses WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate obtiene la bodega y bloquea la fila (SELECT FOR UPDATE) para
// el chequeo de capacidad y la actualización de ocupado sin carreras.
func (r *WarehouseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Warehouse, error) {
	query := `SELECT ` + warehouseColumns + ` FROM warehouses WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *WarehouseRepo) getOne(ctx context.Context, query, id string) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Code, &w.Name, &w.Address, &w.Capacity, &w.OccupiedCapacity, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get warehouse", err)
	}
	return &w, nil
}

// Update actualiza atributos del registro (nombre, dirección, capacidad).
func (r *WarehouseRepo) Update(ctx context.Context, w *entity.Warehouse) error {
	query := `
		UPDATE warehouses SET name = $2, address = $3, capacity = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, w.ID, w.Name, w.Address, w.Capacity, w.UpdatedAt)
	if err != nil {
		return storageErr("update warehouse", err)
	}
	return nil
}

// UpdateOccupied suma delta (con signo) a la capacidad ocupada.
func (r *WarehouseRepo) UpdateOccupied(ctx context.Context, id string, delta int64) error {
	query := `
		UPDATE warehouses SET occupied_capacity = occupied_capacity + $2, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, delta)
	if err != nil {
		return storageErr("update occupied capacity", err)
	}
	return nil
}

// List lista bodegas con paginación.
func (r *WarehouseRepo) List(ctx context.Context, limit, offset int) ([]*entity.Warehouse, error) {
	query := `SELECT ` + warehouseColumns + `
		FROM warehouses ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, storageErr("list warehouses", err)
	}
	defer rows.Close()
	var list []*entity.Warehouse
	for rows.Next() {
		var w entity.Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Capacity,
			&w.OccupiedCapacity, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, storageErr("scan warehouse", err)
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}

// Delete elimina una bodega por ID.
func (r *WarehouseRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete warehouse", err)
	}
	return nil
}
