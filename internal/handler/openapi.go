package handler

import (
	"net/http"

	"github.com/opsdesk/opsdesk/internal/openapi"
)

// OpenAPIHandler serves the dashboard API's OpenAPI document.
type OpenAPIHandler struct {
	baseURL string
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(baseURL string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL}
}

// ServeSpec returns the OpenAPI 3.1 document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.GenerateSpec(h.baseURL))
}
