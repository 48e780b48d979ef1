package dto

import "time"

// CreateWarehouseRequest entrada para crear una bodega. Capacity en unidades
// de huella del registro (0 = sin límite).
type CreateWarehouseRequest struct {
	Code     string `json:"code" validate:"required,min=1,max=50"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Address  string `json:"address"`
	Capacity int64  `json:"capacity" validate:"omitempty,min=0"`
}

// UpdateWarehouseRequest entrada para actualizar una bodega.
type UpdateWarehouseRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Address  *string `json:"address"`
	Capacity *int64  `json:"capacity" validate:"omitempty,min=0"`
}

// WarehouseResponse salida de una bodega.
type WarehouseResponse struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Capacity         int64     `json:"capacity"`
	OccupiedCapacity int64     `json:"occupied_capacity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// WarehouseListResponse lista paginada de bodegas.
type WarehouseListResponse struct {
	Items []WarehouseResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}
