package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas). Taxonomía del libro:
// toda rechazo se devuelve síncrono al caller con su categoría; nunca se
// registra-y-traga, nunca se aplica parcialmente un movimiento multi-parte.
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrValidation         = errors.New("movimiento inválido")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrCapacityExceeded   = errors.New("capacidad de bodega excedida")
	ErrTimeout            = errors.New("operación abandonada por deadline")
	ErrStorageUnavailable = errors.New("almacenamiento no disponible")
	ErrDuplicate          = errors.New("recurso duplicado")
)

// Rejection acompaña un error de la taxonomía con el detalle estructurado
// (qué bodega, qué regla) para que la UI pueda mostrar un mensaje preciso.
type Rejection struct {
	Err         error  // sentinel de la taxonomía
	Rule        string // regla que falló, ej. "quantity_nonzero", "capacity"
	ProductID   string
	WarehouseID string
	Detail      string
}

// NewRejection construye un rechazo estructurado.
func NewRejection(sentinel error, rule, productID, warehouseID, detail string) *Rejection {
	return &Rejection{Err: sentinel, Rule: rule, ProductID: productID, WarehouseID: warehouseID, Detail: detail}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s (regla %s)", r.Err.Error(), r.Rule)
	}
	return fmt.Sprintf("%s (regla %s): %s", r.Err.Error(), r.Rule, r.Detail)
}

// Unwrap permite errors.Is contra los sentinels de la taxonomía.
func (r *Rejection) Unwrap() error { return r.Err }
