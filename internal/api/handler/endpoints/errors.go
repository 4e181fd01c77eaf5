package endpoints

import (
	"errors"
	"net/http"

	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/service"
	"clipflow/internal/engine"
	"clipflow/internal/engine/credit"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/jobs"
	"clipflow/internal/engine/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// writeError answers err with the status code of its class. Unclassified errors are logged and
// answered 500 with fallback as message.
func writeError(c *gin.Context, logger zerolog.Logger, err error, fallback string) {
	var verr *graph.ValidationError
	var insufficient *credit.InsufficientError
	var fatal *engine.FatalError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, response.APIError{Message: verr.Message, Data: verr})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, response.APIError{
			Message: insufficient.Error(),
			Data:    gin.H{"required": insufficient.Required, "available": insufficient.Available},
		})
	case errors.Is(err, service.ErrWorkflowNotFound):
		c.JSON(http.StatusNotFound, response.APIError{Message: "Workflow not found"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, response.APIError{Message: "Execution not found"})
	case errors.Is(err, jobs.ErrJobNotFound):
		c.JSON(http.StatusNotFound, response.APIError{Message: "Job not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.APIError{Message: err.Error()})
	case errors.Is(err, service.ErrNotCancellable):
		c.JSON(http.StatusConflict, response.APIError{Message: err.Error()})
	case errors.Is(err, credit.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, response.APIError{Message: err.Error()})
	case errors.As(err, &fatal) && fatal.Code == engine.CodeStorageUnavailable:
		logger.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusServiceUnavailable, response.APIError{Message: fatal.Reason})
	default:
		logger.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, response.APIError{Message: fallback})
	}
}
