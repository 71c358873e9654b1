package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/catalog"
	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
)

type HealthHandler struct {
	holder *catalog.Holder
}

func NewHealthHandler(holder *catalog.Holder) *HealthHandler {
	return &HealthHandler{holder: holder}
}

// Health godoc
// @Summary      Health check
// @Description  Reports the loaded catalog generation. Unhealthy until at least one state is loaded.
// @Tags         health
// @Produce      json
// @Success      200  {object}  responses.HealthResponse
// @Failure      503  {object}  responses.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	cat := h.holder.Current()
	resp := responses.HealthResponse{
		Status:     "ok",
		States:     cat.Len(),
		Generation: cat.Generation(),
	}
	if !cat.LoadedAt().IsZero() {
		resp.LoadedAt = cat.LoadedAt().UTC().Format(time.RFC3339)
	}
	if cat.Len() == 0 {
		resp.Status = "no data"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ServiceInfo godoc
// @Summary      Service information
// @Tags         health
// @Produce      json
// @Success      200  {object}  responses.ServiceInfoResponse
// @Router       /api [get]
func (h *HealthHandler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, responses.ServiceInfoResponse{
		Service: constants.ServiceName,
		Version: constants.ServiceVersion,
		Endpoints: map[string]string{
			"rate":   "/api/rate?zip=90210",
			"states": "/api/states",
			"health": "/api",
		},
	})
}
