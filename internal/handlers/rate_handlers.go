package handlers

import (
	"net/http"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/middleware"
	"github.com/taxrates/taxrates-api/internal/types/api/requests"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
	"go.uber.org/zap"
)

// RateResolver answers rate and state queries.
type RateResolver interface {
	Resolve(req requests.RateRequest) responses.RateResponse
	States() responses.StatesResponse
	Metadata(state string) (responses.MetadataResponse, bool)
}

// RateHandler serves the rate lookup endpoints.
type RateHandler struct {
	rates RateResolver
}

// NewRateHandler creates a RateHandler.
func NewRateHandler(rates RateResolver) *RateHandler {
	return &RateHandler{rates: rates}
}

// GetRate godoc
// @Summary      Look up a sales-tax rate
// @Description  Resolves the combined rate for a ZIP code or a state, optionally narrowed by city or county
// @Tags         rates
// @Produce      json
// @Param        zip     query  string  false  "ZIP code"
// @Param        state   query  string  false  "Two-letter state code"
// @Param        city    query  string  false  "City name"
// @Param        county  query  string  false  "County name"
// @Success      200  {object}  responses.RateResponse
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /api/rate [get]
func (h *RateHandler) GetRate(c *gin.Context) {
	var req requests.RateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		sendError(c, http.StatusBadRequest, responses.ErrorResponse{
			Error:   "Bad request",
			Message: "Invalid query parameters",
			Example: "/api/rate?zip=90210",
		}, err)
		return
	}

	if strings.TrimSpace(req.Zip) == "" && strings.TrimSpace(req.State) == "" {
		sendError(c, http.StatusBadRequest, responses.ErrorResponse{
			Error:   "Bad request",
			Message: `Either "zip" or "state" parameter is required`,
			Example: "/api/rate?zip=90210",
		}, nil)
		return
	}

	log := middleware.LogWithCorrelationID(c.Request.Context())
	if ce := log.Check(zap.DebugLevel, "Rate request"); ce != nil {
		ce.Write(zap.String("request", spew.Sdump(req)))
	}

	resp := h.rates.Resolve(req)
	if !resp.Supported {
		log.Info("Unsupported rate lookup",
			zap.String("state", resp.State),
			zap.String("reason", resp.Reason),
		)
	}
	sendSuccess(c, http.StatusOK, resp)
}

// ListStates godoc
// @Summary      List supported states
// @Tags         rates
// @Produce      json
// @Success      200  {object}  responses.StatesResponse
// @Router       /api/states [get]
func (h *RateHandler) ListStates(c *gin.Context) {
	sendSuccess(c, http.StatusOK, h.rates.States())
}

// GetStateMetadata godoc
// @Summary      Dataset metadata for one state
// @Tags         rates
// @Produce      json
// @Param        state  path  string  true  "Two-letter state code"
// @Success      200  {object}  responses.MetadataResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /api/states/{state} [get]
func (h *RateHandler) GetStateMetadata(c *gin.Context) {
	state := c.Param("state")
	meta, ok := h.rates.Metadata(state)
	if !ok {
		sendError(c, http.StatusNotFound, responses.ErrorResponse{
			Error:   "Not found",
			Message: "No tax data for " + strings.ToUpper(state),
			Example: "/api/states/CA",
		}, nil)
		return
	}
	sendSuccess(c, http.StatusOK, meta)
}
