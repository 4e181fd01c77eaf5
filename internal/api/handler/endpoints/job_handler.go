package endpoints

import (
	"net/http"

	"clipflow"
	"clipflow/internal/api/handler/mapper"
	"clipflow/internal/api/handler/middleware"
	"clipflow/internal/api/service"
	"clipflow/pkg"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type jobHandler struct {
	jobService *service.JobService
	config     clipflow.AppConfig
	logger     zerolog.Logger
}

func newJobHandler(jobs *service.JobService, cfg clipflow.AppConfig) *jobHandler {
	return &jobHandler{
		jobService: jobs,
		config:     cfg,
		logger:     clipflow.Logger,
	}
}

func JobHandler(router *graceful.Graceful, e *service.Engine) {
	h := newJobHandler(service.NewJobService(e), clipflow.GetConfig())
	h.register(router.Engine)
}

func (slf *jobHandler) register(router gin.IRouter) {
	routes := router.Group("/api/v1/jobs")
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("/:id", slf.getByID)
	}
}

// getByID returns the status of an async model job
func (slf *jobHandler) getByID(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	job, err := slf.jobService.FindForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to retrieve job")
		return
	}
	c.JSON(http.StatusOK, mapper.ToJobResponse(job))
}
