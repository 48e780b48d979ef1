package repository

import (
	"context"

	"github.com/invorya/stock-ledger/internal/domain/entity"
)

// WarehouseRepository define el puerto de persistencia para Warehouse (DIP).
// El registro es dueño del ciclo de vida; el libro solo lee capacidad y
// actualiza OccupiedCapacity dentro de la transacción del movimiento.
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *entity.Warehouse) error
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	// GetForUpdate bloquea la fila de la bodega para la transacción en curso
	// (chequeo de capacidad + actualización de ocupado sin carreras).
	GetForUpdate(ctx context.Context, id string) (*entity.Warehouse, error)
	Update(ctx context.Context, warehouse *entity.Warehouse) error
	// UpdateOccupied suma delta (con signo) a OccupiedCapacity.
	UpdateOccupied(ctx context.Context, id string, delta int64) error
	List(ctx context.Context, limit, offset int) ([]*entity.Warehouse, error)
	Delete(ctx context.Context, id string) error
}
