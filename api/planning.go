package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/models"
	"backend_cmms/services"
)

// PlanningAPI представляет API планирования и загрузки техников
type PlanningAPI struct {
	planning *services.PlanningService
	capacity *services.CapacityService
	accuracy *services.PlanningAccuracyService
}

// NewPlanningAPI создает новый экземпляр PlanningAPI
func NewPlanningAPI(planning *services.PlanningService, capacity *services.CapacityService, accuracy *services.PlanningAccuracyService) *PlanningAPI {
	return &PlanningAPI{planning: planning, capacity: capacity, accuracy: accuracy}
}

// RegisterRoutes регистрирует маршруты планирования
func (api *PlanningAPI) RegisterRoutes(router *gin.RouterGroup) {
	planning := router.Group("/planning")
	{
		slots := planning.Group("/slots")
		slots.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager, models.RolePlanner))
		slots.POST("", api.CreateSlot)
		slots.PUT("/:id", api.UpdateSlot)
		slots.DELETE("/:id", api.DeleteSlot)

		planning.GET("/overlaps", api.GetOverlaps)
		planning.GET("/capacity", api.GetTeamCapacity)
		planning.GET("/capacity/:technician_id", api.GetCapacity)
		planning.GET("/accuracy", api.GetAccuracy)
	}
}

// CreateSlot создает слот планирования
func (api *PlanningAPI) CreateSlot(c *gin.Context) {
	var input services.SlotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}
	input.ActorID = actorID(c)

	result, err := api.planning.CreateSlot(c.Request.Context(), middleware.GetCompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

// UpdateSlot изменяет слот планирования
func (api *PlanningAPI) UpdateSlot(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var input services.SlotUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}
	input.ActorID = actorID(c)

	result, err := api.planning.UpdateSlot(c.Request.Context(), middleware.GetCompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

// DeleteSlot удаляет слот планирования
func (api *PlanningAPI) DeleteSlot(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := api.planning.DeleteSlot(c.Request.Context(), middleware.GetCompanyID(c), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Слот удален",
	})
}

// GetOverlaps возвращает двойные назначения техников
func (api *PlanningAPI) GetOverlaps(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	technicianID, err := parseOptionalUintQuery(c, "technician_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	overlaps, err := api.planning.FindSlotOverlaps(c.Request.Context(), middleware.GetCompanyID(c), technicianID, from, to.AddDate(0, 0, 1))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, overlaps)
}

// GetCapacity возвращает загрузку техника
func (api *PlanningAPI) GetCapacity(c *gin.Context) {
	technicianID, err := parseIDParam(c, "technician_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	from, to, err := parseDateRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	capacity, err := api.capacity.CalculateCapacity(c.Request.Context(), middleware.GetCompanyID(c), technicianID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, capacity)
}

// GetTeamCapacity возвращает загрузку всех техников
func (api *PlanningAPI) GetTeamCapacity(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	team, err := api.capacity.CalculateTeamCapacity(c.Request.Context(), middleware.GetCompanyID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, team)
}

// GetAccuracy возвращает соблюдение графика
func (api *PlanningAPI) GetAccuracy(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := api.accuracy.ComputeScheduleAdherence(c.Request.Context(), middleware.GetCompanyID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
