package endpoints

import (
	"net/http"
	"strconv"

	"clipflow"
	"clipflow/internal/api/handler/mapper"
	"clipflow/internal/api/handler/middleware"
	"clipflow/internal/api/handler/request"
	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/service"
	"clipflow/pkg"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type workflowHandler struct {
	workflowService  *service.WorkflowService
	executionService *service.ExecutionService
	config           clipflow.AppConfig
	logger           zerolog.Logger
}

func newWorkflowHandler(workflows *service.WorkflowService, executions *service.ExecutionService, cfg clipflow.AppConfig) *workflowHandler {
	return &workflowHandler{
		workflowService:  workflows,
		executionService: executions,
		config:           cfg,
		logger:           clipflow.Logger,
	}
}

func WorkflowHandler(router *graceful.Graceful, e *service.Engine) {
	h := newWorkflowHandler(service.NewWorkflowService(), service.NewExecutionService(e), clipflow.GetConfig())
	h.register(router.Engine)
}

func (slf *workflowHandler) register(router gin.IRouter) {
	routes := router.Group("/api/v1/workflows")
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("", slf.getAll)
		routes.POST("", slf.create)
		routes.GET("/:id", slf.getByID)
		routes.PUT("/:id", slf.update)
		routes.DELETE("/:id", slf.delete)

		routes.POST("/:id/execute", slf.execute)
		routes.GET("/:id/executions", slf.executions)
	}
}

func (slf *workflowHandler) getAll(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	workflows, err := slf.workflowService.FindAllForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.APIError{Message: "Failed to retrieve workflows"})
		return
	}
	c.JSON(http.StatusOK, mapper.ToWorkflowSummaries(workflows))
}

func (slf *workflowHandler) getByID(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	workflow, err := slf.workflowService.FindForUser(c.Param("id"), userID)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to retrieve workflow")
		return
	}
	c.JSON(http.StatusOK, mapper.ToWorkflowResponse(workflow))
}

func (slf *workflowHandler) create(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	var req request.CreateWorkflow
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "Invalid request", Data: pkg.ValidationDetails(err)})
		return
	}
	workflow, err := slf.workflowService.Create(userID, req.Name, req.Description, req.Graph)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to create workflow")
		return
	}
	c.JSON(http.StatusCreated, mapper.ToWorkflowResponse(workflow))
}

func (slf *workflowHandler) update(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	var req request.UpdateWorkflow
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "Invalid request", Data: pkg.ValidationDetails(err)})
		return
	}
	workflow, err := slf.workflowService.Update(c.Param("id"), userID, req.Name, req.Description, req.Graph)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to update workflow")
		return
	}
	c.JSON(http.StatusOK, mapper.ToWorkflowResponse(workflow))
}

func (slf *workflowHandler) delete(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	if err := slf.workflowService.Delete(c.Param("id"), userID); err != nil {
		writeError(c, slf.logger, err, "Failed to delete workflow")
		return
	}
	c.Status(http.StatusNoContent)
}

// execute validates the workflow graph against the input data and starts an execution
func (slf *workflowHandler) execute(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	var req request.ExecuteWorkflow
	if c.Request.ContentLength != 0 {
		if err := pkg.ParseAndValidate(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, response.APIError{Message: "Invalid request", Data: pkg.ValidationDetails(err)})
			return
		}
	}

	rec, err := slf.executionService.Execute(c.Request.Context(), service.ExecuteInput{
		WorkflowID:    c.Param("id"),
		UserID:        userID,
		UserEmail:     pkg.GetUserEmail(c),
		InputData:     req.InputData,
		TargetNodeIDs: req.TargetNodeIDs,
	})
	if err != nil {
		writeError(c, slf.logger, err, "Failed to execute workflow")
		return
	}
	c.JSON(http.StatusCreated, mapper.ToExecutionResponse(rec))
}

func (slf *workflowHandler) executions(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recs, err := slf.executionService.ListForWorkflow(c.Request.Context(), c.Param("id"), userID, limit, offset)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to retrieve executions")
		return
	}
	c.JSON(http.StatusOK, mapper.ToExecutionResponses(recs))
}
