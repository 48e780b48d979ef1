package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/invorya/stock-ledger/internal/domain"
	"github.com/invorya/stock-ledger/internal/domain/entity"
)

// MovementIntent es la propuesta de movimiento que envía un colaborador
// externo. Convención de signo: Quantity positivo aumenta stock en destino,
// negativo disminuye en origen. TRANSFER lleva la magnitud trasladada
// (positiva) más ambas bodegas.
type MovementIntent struct {
	ProductID       string
	Unit            string
	MovementType    string
	ReferenceType   string
	Quantity        int64
	FromWarehouseID string
	ToWarehouseID   string
	ReferenceNumber string
	CostPerUnit     *decimal.Decimal
	OccurredAt      *time.Time
	Actor           string
	Notes           string
}

// ValidatedMovement es el intent admitido por el validador, con los campos
// derivados que necesita el proyector.
type ValidatedMovement struct {
	Intent     MovementIntent
	OccurredAt time.Time
}

// Validate aplica las reglas estructurales y de negocio en orden. Un fallo
// produce un rechazo con la regla específica, nunca un registro parcial.
// El chequeo de stock suficiente es advisory aquí; la verificación
// autoritativa ocurre bajo el lock de fila en la aplicación (evita carreras).
func Validate(intent MovementIntent, now time.Time) (*ValidatedMovement, error) {
	if intent.ProductID == "" {
		return nil, domain.NewRejection(domain.ErrValidation, "product_required", "", "", "product_id es requerido")
	}
	if intent.Quantity == 0 {
		return nil, domain.NewRejection(domain.ErrValidation, "quantity_nonzero", intent.ProductID, "", "quantity no puede ser cero")
	}
	if !entity.ValidMovementType(intent.MovementType) {
		return nil, domain.NewRejection(domain.ErrValidation, "movement_type", intent.ProductID, "", "tipo de movimiento desconocido: "+intent.MovementType)
	}
	if !entity.ValidReferenceType(intent.ReferenceType) {
		return nil, domain.NewRejection(domain.ErrValidation, "reference_type", intent.ProductID, "", "tipo de referencia desconocido: "+intent.ReferenceType)
	}

	switch intent.MovementType {
	case entity.MovementTypeIN:
		if intent.ToWarehouseID == "" {
			return nil, domain.NewRejection(domain.ErrValidation, "to_warehouse_required", intent.ProductID, "", "IN requiere to_warehouse_id")
		}
		if intent.Quantity < 0 {
			return nil, domain.NewRejection(domain.ErrValidation, "quantity_sign", intent.ProductID, intent.ToWarehouseID, "IN requiere cantidad positiva")
		}
	case entity.MovementTypeOUT:
		if intent.FromWarehouseID == "" {
			return nil, domain.NewRejection(domain.ErrValidation, "from_warehouse_required", intent.ProductID, "", "OUT requiere from_warehouse_id")
		}
		if intent.Quantity > 0 {
			return nil, domain.NewRejection(domain.ErrValidation, "quantity_sign", intent.ProductID, intent.FromWarehouseID, "OUT requiere cantidad negativa")
		}
	case entity.MovementTypeTRANSFER:
		if intent.FromWarehouseID == "" || intent.ToWarehouseID == "" {
			return nil, domain.NewRejection(domain.ErrValidation, "transfer_warehouses", intent.ProductID, "", "TRANSFER requiere from_warehouse_id y to_warehouse_id")
		}
		if intent.FromWarehouseID == intent.ToWarehouseID {
			return nil, domain.NewRejection(domain.ErrValidation, "transfer_distinct", intent.ProductID, intent.FromWarehouseID, "origen y destino deben diferir")
		}
		if intent.Quantity < 0 {
			return nil, domain.NewRejection(domain.ErrValidation, "quantity_sign", intent.ProductID, intent.FromWarehouseID, "TRANSFER lleva la magnitud positiva trasladada")
		}
	case entity.MovementTypeADJUSTMENT:
		if intent.Quantity > 0 && intent.ToWarehouseID == "" {
			return nil, domain.NewRejection(domain.ErrValidation, "to_warehouse_required", intent.ProductID, "", "ajuste positivo requiere to_warehouse_id")
		}
		if intent.Quantity < 0 && intent.FromWarehouseID == "" {
			return nil, domain.NewRejection(domain.ErrValidation, "from_warehouse_required", intent.ProductID, "", "ajuste negativo requiere from_warehouse_id")
		}
	}

	// CostPerUnit >= 0 cuando viene; si falta en una entrada, el promedio
	// vigente queda intacto (caso de recuento de stock encontrado).
	if intent.CostPerUnit != nil && intent.CostPerUnit.IsNegative() {
		return nil, domain.NewRejection(domain.ErrValidation, "cost_nonnegative", intent.ProductID, "", "cost_per_unit no puede ser negativo")
	}

	occurredAt := now
	if intent.OccurredAt != nil && !intent.OccurredAt.IsZero() {
		occurredAt = *intent.OccurredAt
	}
	return &ValidatedMovement{Intent: intent, OccurredAt: occurredAt}, nil
}
