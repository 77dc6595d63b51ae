package handlers

import (
	"net/http"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	Base
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.WriteJSON(w, http.StatusOK, dto.NewHealthResponse())
}
