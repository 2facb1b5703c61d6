package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/docqa/internal/llm"
)

type ModelsHandler struct {
	gateway llm.Gateway
}

func NewModelsHandler(gw llm.Gateway) *ModelsHandler {
	return &ModelsHandler{gateway: gw}
}

func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}
