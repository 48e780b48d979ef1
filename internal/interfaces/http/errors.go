package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/invorya/stock-ledger/internal/application/dto"
	"github.com/invorya/stock-ledger/internal/domain"
)

// respondError traduce la taxonomía de dominio a HTTP. Si el error es un
// Rejection estructurado, el cuerpo incluye bodega y regla para que la UI
// muestre un mensaje preciso y accionable.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrCapacityExceeded):
		status, code = fiber.StatusConflict, "CAPACITY_EXCEEDED"
	case errors.Is(err, domain.ErrDuplicate):
		status, code = fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrTimeout):
		status, code = fiber.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, domain.ErrStorageUnavailable):
		status, code = fiber.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"
	}

	body := dto.ErrorResponse{Code: code, Message: err.Error()}
	var rej *domain.Rejection
	if errors.As(err, &rej) {
		body.Rule = rej.Rule
		body.ProductID = rej.ProductID
		body.WarehouseID = rej.WarehouseID
		body.Message = rej.Err.Error()
		if rej.Detail != "" {
			body.Message += ": " + rej.Detail
		}
	}
	return c.Status(status).JSON(body)
}
