package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/services"
)

// ProductionAPI представляет API учета прогонов и простоев
type ProductionAPI struct {
	production *services.ProductionService
}

// NewProductionAPI создает новый экземпляр ProductionAPI
func NewProductionAPI(production *services.ProductionService) *ProductionAPI {
	return &ProductionAPI{production: production}
}

// RegisterRoutes регистрирует маршруты производства
func (api *ProductionAPI) RegisterRoutes(router *gin.RouterGroup) {
	production := router.Group("/production")
	{
		production.POST("/runs", api.StartRun)
		production.POST("/runs/:id/end", api.EndRun)
		production.POST("/downtimes", api.StartDowntime)
		production.POST("/downtimes/:id/end", api.EndDowntime)
	}
}

// EndDowntimeRequest время окончания простоя
type EndDowntimeRequest struct {
	EndTime *time.Time `json:"end_time"`
}

// StartRun открывает производственный прогон
func (api *ProductionAPI) StartRun(c *gin.Context) {
	var input services.StartRunInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}

	run, err := api.production.StartRun(c.Request.Context(), middleware.GetCompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, run)
}

// EndRun закрывает прогон и рассчитывает OEE
func (api *ProductionAPI) EndRun(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var input services.EndRunInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}
	input.UserID = actorID(c)

	run, err := api.production.EndRun(c.Request.Context(), middleware.GetCompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, run)
}

// StartDowntime регистрирует начало простоя
func (api *ProductionAPI) StartDowntime(c *gin.Context) {
	var input services.StartDowntimeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}

	downtime, err := api.production.StartDowntime(c.Request.Context(), middleware.GetCompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, downtime)
}

// EndDowntime закрывает простой
func (api *ProductionAPI) EndDowntime(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var req EndDowntimeRequest
	_ = c.ShouldBindJSON(&req)

	downtime, err := api.production.EndDowntime(c.Request.Context(), middleware.GetCompanyID(c), id, req.EndTime)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, downtime)
}
