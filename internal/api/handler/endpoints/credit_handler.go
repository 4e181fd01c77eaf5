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

type creditHandler struct {
	creditService *service.CreditService
	config        clipflow.AppConfig
	logger        zerolog.Logger
}

func newCreditHandler(credits *service.CreditService, cfg clipflow.AppConfig) *creditHandler {
	return &creditHandler{
		creditService: credits,
		config:        cfg,
		logger:        clipflow.Logger,
	}
}

func CreditHandler(router *graceful.Graceful, e *service.Engine) {
	h := newCreditHandler(service.NewCreditService(e), clipflow.GetConfig())
	h.register(router.Engine)
}

func (slf *creditHandler) register(router gin.IRouter) {
	routes := router.Group("/api/v1/credits")
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("/balance", slf.balance)
		routes.GET("/transactions", slf.transactions)
	}

	admin := router.Group("/api/v1/admin/credits")
	admin.Use(middleware.AuthMiddleware(slf.config), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/grant", slf.grant)
	}
}

func (slf *creditHandler) balance(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	balance, err := slf.creditService.Balance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to read credit balance")
		return
	}
	c.JSON(http.StatusOK, response.CreditBalance{UserID: userID, Balance: balance})
}

func (slf *creditHandler) transactions(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := slf.creditService.Transactions(userID, limit, offset)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to retrieve credit transactions")
		return
	}
	c.JSON(http.StatusOK, mapper.ToCreditTransactionResponses(txs))
}

func (slf *creditHandler) grant(c *gin.Context) {
	var req request.GrantCredits
	if err := pkg.ParseAndValidate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.APIError{Message: "Invalid request", Data: pkg.ValidationDetails(err)})
		return
	}
	balance, err := slf.creditService.Grant(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to grant credits")
		return
	}
	c.JSON(http.StatusOK, response.CreditBalance{UserID: req.UserID, Balance: balance})
}
