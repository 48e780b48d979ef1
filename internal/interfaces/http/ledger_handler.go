package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/invorya/stock-ledger/internal/application/dto"
	"github.com/invorya/stock-ledger/internal/application/ledger"
	"github.com/invorya/stock-ledger/internal/domain/entity"
	"github.com/invorya/stock-ledger/internal/domain/repository"
)

// LedgerHandler maneja las peticiones HTTP del libro de inventario:
// registrar movimientos y consultar saldos, historial y valorización.
type LedgerHandler struct {
	submit *ledger.SubmitMovementUseCase
	query  *ledger.QueryService
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(submit *ledger.SubmitMovementUseCase, query *ledger.QueryService) *LedgerHandler {
	return &LedgerHandler{submit: submit, query: query}
}

// SubmitMovement godoc
// @Summary      Registrar movimiento de inventario
// @Description  IN/OUT/ADJUSTMENT/TRANSFER. Quantity con signo: positivo
//
//	aumenta stock en to_warehouse_id, negativo disminuye en
//	from_warehouse_id. TRANSFER lleva la magnitud más ambas bodegas.
//
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string  false  "Identidad de quien emite el movimiento (solo auditoría)"
// @Param        body  body  dto.SubmitMovementRequest  true  "Intent del movimiento"
// @Success      201   {object}  dto.MovementResultResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      504   {object}  dto.ErrorResponse
// @Router       /api/ledger/movements [post]
func (h *LedgerHandler) SubmitMovement(c *fiber.Ctx) error {
	var in dto.SubmitMovementRequest
	if !parseAndValidate(c, &in) {
		return nil
	}
	result, err := h.submit.SubmitMovement(c.Context(), ledger.MovementIntent{
		ProductID:       in.ProductID,
		Unit:            in.Unit,
		MovementType:    in.MovementType,
		ReferenceType:   in.ReferenceType,
		Quantity:        in.Quantity,
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		ReferenceNumber: in.ReferenceNumber,
		CostPerUnit:     in.CostPerUnit,
		OccurredAt:      in.OccurredAt,
		Actor:           c.Get("X-Actor"),
		Notes:           in.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResultResponse(result))
}

// GetBalance godoc
// @Summary      Saldo de un producto en una bodega
// @Tags         ledger
// @Produce      json
// @Param        productId    path  string  true  "ID del producto"
// @Param        warehouseId  path  string  true  "ID de la bodega"
// @Success      200  {object}  dto.BalanceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/balances/{productId}/{warehouseId} [get]
func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	bal, err := h.query.GetBalance(c.Context(), c.Params("productId"), c.Params("warehouseId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBalanceResponse(bal))
}

// ListBalances godoc
// @Summary      Saldos de una bodega (vista dashboard)
// @Tags         ledger
// @Produce      json
// @Param        warehouse_id  query  string  true   "ID de la bodega"
// @Param        limit         query  int     false  "Límite"  default(100)
// @Param        offset        query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.BalanceListResponse
// @Router       /api/ledger/balances [get]
func (h *LedgerHandler) ListBalances(c *fiber.Ctx) error {
	warehouseID := c.Query("warehouse_id")
	if warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "warehouse_id es requerido"})
	}
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	list, err := h.query.ListBalances(c.Context(), warehouseID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.BalanceResponse, 0, len(list))
	for _, b := range list {
		items = append(items, toBalanceResponse(b))
	}
	return c.JSON(dto.BalanceListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	})
}

// GetHistory godoc
// @Summary      Historial de movimientos
// @Description  Orden de ID ascendente; paginar repitiendo con after_id =
//
//	next_after_id de la respuesta anterior.
//
// @Tags         ledger
// @Produce      json
// @Param        product_id    query  string  false  "Filtrar por producto"
// @Param        warehouse_id  query  string  false  "Filtrar por bodega"
// @Param        from          query  string  false  "Desde (RFC3339, sobre occurred_at)"
// @Param        to            query  string  false  "Hasta (RFC3339)"
// @Param        after_id      query  int     false  "Cursor: último ID visto"
// @Param        limit         query  int     false  "Límite"  default(100)
// @Success      200  {object}  dto.HistoryResponse
// @Router       /api/ledger/movements [get]
func (h *LedgerHandler) GetHistory(c *fiber.Ctx) error {
	filter := repository.MovementFilter{
		ProductID:   c.Query("product_id"),
		WarehouseID: c.Query("warehouse_id"),
		Limit:       c.QueryInt("limit", 100),
	}
	if after := c.Query("after_id"); after != "" {
		id, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "after_id inválido"})
		}
		filter.AfterID = id
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
		}
		filter.To = &t
	}

	list, err := h.query.GetHistory(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	resp := dto.HistoryResponse{Items: make([]dto.MovementRecordResponse, 0, len(list))}
	for _, m := range list {
		resp.Items = append(resp.Items, toMovementResponse(m))
	}
	if len(list) > 0 {
		resp.NextAfterID = list[len(list)-1].ID
	}
	return c.JSON(resp)
}

// GetValuation godoc
// @Summary      Valorización total de un producto
// @Tags         ledger
// @Produce      json
// @Param        productId  path  string  true  "ID del producto"
// @Success      200  {object}  dto.ValuationResponse
// @Router       /api/ledger/valuation/{productId} [get]
func (h *LedgerHandler) GetValuation(c *fiber.Ctx) error {
	v, err := h.query.GetValuation(c.Context(), c.Params("productId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ValuationResponse{
		ProductID:     v.ProductID,
		TotalQuantity: v.TotalQuantity,
		TotalValue:    v.TotalValue,
	})
}

func toMovementResponse(m *entity.MovementRecord) dto.MovementRecordResponse {
	return dto.MovementRecordResponse{
		ID:              m.ID,
		TransactionID:   m.TransactionID,
		ProductID:       m.ProductID,
		Unit:            m.Unit,
		WarehouseID:     m.WarehouseID,
		FromWarehouseID: m.FromWarehouseID,
		ToWarehouseID:   m.ToWarehouseID,
		MovementType:    m.MovementType,
		ReferenceType:   m.ReferenceType,
		ReferenceNumber: m.ReferenceNumber,
		Quantity:        m.Quantity,
		CostPerUnit:     m.CostPerUnit,
		OccurredAt:      m.OccurredAt,
		Actor:           m.Actor,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}

func toBalanceResponse(b *entity.WarehouseBalance) dto.BalanceResponse {
	return dto.BalanceResponse{
		ProductID:           b.ProductID,
		WarehouseID:         b.WarehouseID,
		QuantityOnHand:      b.QuantityOnHand,
		WeightedAverageCost: b.WeightedAverageCost,
		LastMovementID:      b.LastMovementID,
		UpdatedAt:           b.UpdatedAt,
	}
}

func toMovementResultResponse(r *ledger.MovementResult) dto.MovementResultResponse {
	resp := dto.MovementResultResponse{TransactionID: r.TransactionID}
	for _, m := range r.Records {
		resp.Records = append(resp.Records, toMovementResponse(m))
	}
	for _, b := range r.Balances {
		resp.Balances = append(resp.Balances, toBalanceResponse(b))
	}
	return resp
}
