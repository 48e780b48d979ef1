package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del libro de inventario.
const (
	MovementTypeIN         = "IN"         // entrada
	MovementTypeOUT        = "OUT"        // salida
	MovementTypeTRANSFER   = "TRANSFER"   // traslado entre bodegas (dos mitades enlazadas)
	MovementTypeADJUSTMENT = "ADJUSTMENT" // ajuste con signo
)

// Tipos de referencia: procedencia del movimiento, independiente del tipo.
// Una devolución (RETURN) puede producir una entrada (IN), por ejemplo.
const (
	ReferenceTypePURCHASE   = "PURCHASE"
	ReferenceTypeSALE       = "SALE"
	ReferenceTypeTRANSFER   = "TRANSFER"
	ReferenceTypeADJUSTMENT = "ADJUSTMENT"
	ReferenceTypeRETURN     = "RETURN"
)

// ValidMovementType verifica que el tipo de movimiento esté enumerado.
func ValidMovementType(t string) bool {
	switch t {
	case MovementTypeIN, MovementTypeOUT, MovementTypeTRANSFER, MovementTypeADJUSTMENT:
		return true
	}
	return false
}

// ValidReferenceType verifica que el tipo de referencia esté enumerado.
// Valores desconocidos se rechazan, nunca se coaccionan.
func ValidReferenceType(t string) bool {
	switch t {
	case ReferenceTypePURCHASE, ReferenceTypeSALE, ReferenceTypeTRANSFER,
		ReferenceTypeADJUSTMENT, ReferenceTypeRETURN:
		return true
	}
	return false
}

// MovementRecord es un registro inmutable del libro de movimientos.
// Una vez asignado su ID en el append nunca se muta ni se borra; las
// correcciones se modelan como nuevos ADJUSTMENT compensatorios.
//
// Convención de signo: Quantity positivo aumenta stock en WarehouseID,
// negativo lo disminuye. Un TRANSFER se representa como dos mitades
// (salida en origen, entrada en destino) que comparten TransactionID y
// ReferenceNumber y se aplican atómicamente.
type MovementRecord struct {
	ID              int64  // monotónico, asignado por el allocator en el append
	TransactionID   string // UUID; enlaza las dos mitades de un traslado
	ProductID       string
	Unit            string
	WarehouseID     string // bodega afectada por esta mitad
	FromWarehouseID string // procedencia (vacío si no aplica)
	ToWarehouseID   string // destino (vacío si no aplica)
	MovementType    string
	ReferenceType   string
	ReferenceNumber string // correlación del caller (factura, orden); no único
	Quantity        int64  // con signo
	CostPerUnit     *decimal.Decimal
	OccurredAt      time.Time
	Actor           string // solo auditoría
	Notes           string
	CreatedAt       time.Time
}

// Increases indica si el registro aumenta stock en su bodega.
func (m *MovementRecord) Increases() bool {
	return m.Quantity > 0
}

// Magnitude devuelve |Quantity|.
func (m *MovementRecord) Magnitude() int64 {
	if m.Quantity < 0 {
		return -m.Quantity
	}
	return m.Quantity
}
