package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invorya/stock-ledger/internal/application/dto"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// WarehouseUseCase casos de uso CRUD para bodegas (el registro es dueño de
// identidad, capacidad y atributos estáticos; el libro solo los consume).
type WarehouseUseCase struct {
	repo repository.WarehouseRepository
}

// NewWarehouseUseCase construye el caso de uso.
func NewWarehouseUseCase(repo repository.WarehouseRepository) *WarehouseUseCase {
	return &WarehouseUseCase{repo: repo}
}

// Create crea una nueva bodega.
func (uc *WarehouseUseCase) Create(ctx context.Context, in dto.CreateWarehouseRequest) (*dto.WarehouseResponse, error) {
	now := time.Now()
	warehouse := &entity.Warehouse{
		ID:        uuid.New().String(),
		Code:      in.Code,
		Name:      in.Name,
		Address:   in.Address,
		Capacity:  in.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, warehouse); err != nil {
		return nil, err
	}
	return toWarehouseResponse(warehouse), nil
}

// GetByID obtiene una bodega por ID.
func (uc *WarehouseUseCase) GetByID(ctx context.Context, id string) (*dto.WarehouseResponse, error) {
	warehouse, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, nil
	}
	return toWarehouseResponse(warehouse), nil
}

// Update actualiza nombre, dirección o capacidad de una bodega.
func (uc *WarehouseUseCase) Update(ctx context.Context, id string, in dto.UpdateWarehouseRequest) (*dto.WarehouseResponse, error) {
	warehouse, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, nil
	}
	if in.Name != nil {
		warehouse.Name = *in.Name
	}
	if in.Address != nil {
		warehouse.Address = *in.Address
	}
	if in.Capacity != nil {
		warehouse.Capacity = *in.Capacity
	}
	warehouse.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, warehouse); err != nil {
		return nil, err
	}
	return toWarehouseResponse(warehouse), nil
}

// List lista bodegas con paginación.
func (uc *WarehouseUseCase) List(ctx context.Context, limit, offset int) (*dto.WarehouseListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.WarehouseResponse, 0, len(list))
	for _, w := range list {
		items = append(items, *toWarehouseResponse(w))
	}
	return &dto.WarehouseListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete elimina una bodega por ID.
func (uc *WarehouseUseCase) Delete(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}

func toWarehouseResponse(w *entity.Warehouse) *dto.WarehouseResponse {
	if w == nil {
		return nil
	}
	return &dto.WarehouseResponse{
		ID:               w.ID,
		Code:             w.Code,
		Name:             w.Name,
		Address:          w.Address,
		Capacity:         w.Capacity,
		OccupiedCapacity: w.OccupiedCapacity,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}
