package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total,omitempty"`
}

// ErrorResponse cuerpo de error HTTP. Rule/ProductID/WarehouseID llevan el
// detalle estructurado de un rechazo del libro para que la UI arme un
// mensaje accionable (qué bodega, qué regla), no un fallo genérico.
type ErrorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Rule        string `json:"rule,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}
