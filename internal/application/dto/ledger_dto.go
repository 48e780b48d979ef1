package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmitMovementRequest body para POST /api/ledger/movements.
// Convención de signo: quantity positivo aumenta stock en to_warehouse_id,
// negativo disminuye en from_warehouse_id. TRANSFER lleva la magnitud
// positiva más ambas bodegas.
type SubmitMovementRequest struct {
	ProductID       string           `json:"product_id" validate:"required"`
	Unit            string           `json:"unit"`
	MovementType    string           `json:"movement_type" validate:"required"`
	ReferenceType   string           `json:"reference_type" validate:"required"`
	Quantity        int64            `json:"quantity" validate:"required"`
	FromWarehouseID string           `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   string           `json:"to_warehouse_id,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	CostPerUnit     *decimal.Decimal `json:"cost_per_unit,omitempty"`
	OccurredAt      *time.Time       `json:"occurred_at,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

// MovementRecordResponse salida de un registro del libro.
type MovementRecordResponse struct {
	ID              int64            `json:"id"`
	TransactionID   string           `json:"transaction_id"`
	ProductID       string           `json:"product_id"`
	Unit            string           `json:"unit,omitempty"`
	WarehouseID     string           `json:"warehouse_id"`
	FromWarehouseID string           `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   string           `json:"to_warehouse_id,omitempty"`
	MovementType    string           `json:"movement_type"`
	ReferenceType   string           `json:"reference_type"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Quantity        int64            `json:"quantity"`
	CostPerUnit     *decimal.Decimal `json:"cost_per_unit,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
	Actor           string           `json:"actor,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// BalanceResponse saldo derivado de un producto en una bodega.
type BalanceResponse struct {
	ProductID           string          `json:"product_id"`
	WarehouseID         string          `json:"warehouse_id"`
	QuantityOnHand      int64           `json:"quantity_on_hand"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	LastMovementID      int64           `json:"last_movement_id"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// MovementResultResponse resultado terminal de un movimiento aplicado.
type MovementResultResponse struct {
	TransactionID string                   `json:"transaction_id"`
	Records       []MovementRecordResponse `json:"records"`
	Balances      []BalanceResponse        `json:"balances"`
}

// HistoryResponse página de historial con cursor para la siguiente página.
type HistoryResponse struct {
	Items       []MovementRecordResponse `json:"items"`
	NextAfterID int64                    `json:"next_after_id,omitempty"`
}

// ValuationResponse valorización total de un producto entre bodegas.
type ValuationResponse struct {
	ProductID     string          `json:"product_id"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// BalanceListResponse saldos de una bodega (vista dashboard).
type BalanceListResponse struct {
	Items []BalanceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
