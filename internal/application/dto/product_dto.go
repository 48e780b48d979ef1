package dto

import "time"

// CreateProductRequest entrada para crear un producto. UnitFootprint es la
// huella de espacio por unidad para la aritmética de capacidad (0 = el
// producto no consume espacio rastreado).
type CreateProductRequest struct {
	SKU           string `json:"sku" validate:"required,min=1,max=100"`
	Name          string `json:"name" validate:"required,min=1,max=200"`
	Description   string `json:"description"`
	UnitMeasure   string `json:"unit_measure"`
	UnitFootprint int64  `json:"unit_footprint" validate:"omitempty,min=0"`
}

// UpdateProductRequest entrada para actualizar un producto.
type UpdateProductRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string `json:"description"`
	UnitMeasure   *string `json:"unit_measure"`
	UnitFootprint *int64  `json:"unit_footprint" validate:"omitempty,min=0"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	UnitMeasure   string    `json:"unit_measure,omitempty"`
	UnitFootprint int64     `json:"unit_footprint"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
