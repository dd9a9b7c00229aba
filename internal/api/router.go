package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the request id, logging and
// recovery middleware installed.
func NewRouter(h *Handler, logger *slog.Logger, chatLimit gin.HandlerFunc) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(RequestID(), Logger(logger), Recovery(logger))
	h.RegisterRoutes(router, chatLimit)
	return router
}
