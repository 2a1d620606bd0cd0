package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/models"
	"backend_cmms/services"
)

// InventoryAPI представляет API склада запчастей
type InventoryAPI struct {
	inventory *services.InventoryService
}

// NewInventoryAPI создает новый экземпляр InventoryAPI
func NewInventoryAPI(inventory *services.InventoryService) *InventoryAPI {
	return &InventoryAPI{inventory: inventory}
}

// RegisterRoutes регистрирует маршруты склада
func (api *InventoryAPI) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/inventory")
	{
		inventory.POST("/receive", middleware.RequireRole(models.RoleAdmin, models.RoleManager), api.ReceiveStock)
		inventory.GET("/reconcile", api.ReconcileStock)
	}
}

// ReceiveStock оприходует запчасти
func (api *InventoryAPI) ReceiveStock(c *gin.Context) {
	var input services.ReceiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}
	input.UserID = actorID(c)

	result, err := api.inventory.ReceiveStock(c.Request.Context(), middleware.GetCompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

// ReconcileStock сверяет остаток с журналом движений
func (api *InventoryAPI) ReconcileStock(c *gin.Context) {
	partID, err := strconv.ParseUint(c.Query("spare_part_id"), 10, 64)
	if err != nil || partID == 0 {
		badRequest(c, "Некорректный spare_part_id")
		return
	}
	locationID, err := strconv.ParseUint(c.Query("location_id"), 10, 64)
	if err != nil || locationID == 0 {
		badRequest(c, "Некорректный location_id")
		return
	}

	result, err := api.inventory.ReconcileStock(c.Request.Context(), middleware.GetCompanyID(c), uint(partID), uint(locationID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
