package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
)

// writeError maps domain errors to status codes. Unclassified errors are
// logged in full and reported with a generic message.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var denied *domainwf.PermissionDeniedError
	var invalid *domainwf.ValidationError

	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "Permission denied",
			Reasons: denied.Reasons,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: invalid.Error()})
	case errors.Is(err, domainwf.ErrValidation):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request"})
	case errors.Is(err, domainwf.ErrInvalidState):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "Workflow instance is not active"})
	case errors.Is(err, domainwf.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "Not found"})
	case errors.Is(err, domainwf.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "Workflow instance was modified concurrently, retry"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("actor_id", ActorID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
	}
}
