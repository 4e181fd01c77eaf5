package endpoints

import (
	"net/http"

	"clipflow"
	"clipflow/internal/api/handler/mapper"
	"clipflow/internal/api/handler/middleware"
	"clipflow/internal/api/handler/response"
	"clipflow/internal/api/service"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/modelapi"
	"clipflow/internal/engine/node"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
)

// catalogHandler serves what the graph editor needs to draw a palette: node kinds and models.
type catalogHandler struct {
	registry *node.Registry
	catalog  *modelapi.Catalog
	config   clipflow.AppConfig
}

func newCatalogHandler(registry *node.Registry, catalog *modelapi.Catalog, cfg clipflow.AppConfig) *catalogHandler {
	return &catalogHandler{registry: registry, catalog: catalog, config: cfg}
}

func CatalogHandler(router *graceful.Graceful, e *service.Engine) {
	h := newCatalogHandler(e.Registry, e.Catalog, clipflow.GetConfig())
	h.register(router.Engine)
}

func (slf *catalogHandler) register(router gin.IRouter) {
	routes := router.Group("/api/v1")
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("/node-types", slf.nodeTypes)
		routes.GET("/node-types/:kind", slf.nodeType)
		routes.GET("/models", slf.models)
	}
}

func (slf *catalogHandler) nodeTypes(c *gin.Context) {
	c.JSON(http.StatusOK, mapper.ToNodeTypeResponses(slf.registry.Definitions()))
}

func (slf *catalogHandler) nodeType(c *gin.Context) {
	def, ok := slf.registry.Definition(graph.Kind(c.Param("kind")))
	if !ok {
		c.JSON(http.StatusNotFound, response.APIError{Message: "Node type not found"})
		return
	}
	c.JSON(http.StatusOK, mapper.ToNodeTypeResponse(def))
}

func (slf *catalogHandler) models(c *gin.Context) {
	c.JSON(http.StatusOK, mapper.ToModelResponses(slf.catalog.Models(c.Query("category"))))
}
