package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/middleware"
	"github.com/taxrates/taxrates-api/internal/types/api/responses"
	"go.uber.org/zap"
)

// sendError is a helper function that combines logging and error response
func sendError(c *gin.Context, statusCode int, resp responses.ErrorResponse, err error) {
	log := middleware.LogWithCorrelationID(c.Request.Context())
	fields := []zap.Field{
		zap.Int("status", statusCode),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Warn(resp.Error, fields...)
	c.JSON(statusCode, resp)
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}
