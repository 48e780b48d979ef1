package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/invorya/stock-ledger/internal/application/dto"
)

var validate = validator.New()

// parseAndValidate parsea el body JSON y aplica las reglas `validate` de los
// DTOs. Devuelve false si ya respondió un 400.
func parseAndValidate(c *fiber.Ctx, out any) bool {
	if err := c.BodyParser(out); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		return false
	}
	if err := validate.Struct(out); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		return false
	}
	return true
}
