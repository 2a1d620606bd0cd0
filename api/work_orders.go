package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/services"
)

// WorkOrderAPI представляет API жизненного цикла заявок
type WorkOrderAPI struct {
	workOrders *services.WorkOrderService
	costs      *services.CostService
}

// NewWorkOrderAPI создает новый экземпляр WorkOrderAPI
func NewWorkOrderAPI(workOrders *services.WorkOrderService, costs *services.CostService) *WorkOrderAPI {
	return &WorkOrderAPI{workOrders: workOrders, costs: costs}
}

// RegisterRoutes регистрирует маршруты заявок
func (api *WorkOrderAPI) RegisterRoutes(router *gin.RouterGroup) {
	workOrders := router.Group("/work-orders")
	{
		workOrders.POST("/:id/start", api.StartWorkOrder)
		workOrders.POST("/:id/cancel", api.CancelWorkOrder)
		workOrders.POST("/:id/complete", api.CompleteWorkOrder)
		workOrders.GET("/:id/cost", api.GetWorkOrderCost)
		workOrders.POST("/:id/external-services", api.AddExternalService)
	}
}

// CancelRequest причина отмены заявки
type CancelRequest struct {
	Reason string `json:"reason"`
}

// StartWorkOrder переводит заявку в работу
func (api *WorkOrderAPI) StartWorkOrder(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	wo, err := api.workOrders.StartWorkOrder(c.Request.Context(), middleware.GetCompanyID(c), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, wo)
}

// CancelWorkOrder отменяет заявку
func (api *WorkOrderAPI) CancelWorkOrder(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var req CancelRequest
	// Тело необязательно
	_ = c.ShouldBindJSON(&req)

	wo, err := api.workOrders.CancelWorkOrder(c.Request.Context(), middleware.GetCompanyID(c), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, wo)
}

// CompleteWorkOrder закрывает заявку: списание, трудозатраты, стоимость, плановое ТО
func (api *WorkOrderAPI) CompleteWorkOrder(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var input services.CompletionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}
	input.UserID = middleware.GetUserID(c)
	input.Role = middleware.GetRole(c)

	result, err := api.workOrders.Complete(c.Request.Context(), middleware.GetCompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// GetWorkOrderCost возвращает стоимость заявки
func (api *WorkOrderAPI) GetWorkOrderCost(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	cost, err := api.costs.GetCost(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, cost)
}

// AddExternalService добавляет работы подрядчика
func (api *WorkOrderAPI) AddExternalService(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var input services.ExternalServiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}

	record, err := api.workOrders.AddExternalService(c.Request.Context(), middleware.GetCompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, record)
}
