package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"backend_cmms/middleware"
	"backend_cmms/models"
	"backend_cmms/services"
)

// LaborRateAPI представляет API ставок оплаты труда
type LaborRateAPI struct {
	rates *services.LaborRateService
}

// NewLaborRateAPI создает новый экземпляр LaborRateAPI
func NewLaborRateAPI(rates *services.LaborRateService) *LaborRateAPI {
	return &LaborRateAPI{rates: rates}
}

// RegisterRoutes регистрирует маршруты ставок
func (api *LaborRateAPI) RegisterRoutes(router *gin.RouterGroup) {
	rates := router.Group("/labor-rates")
	rates.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	{
		rates.POST("", api.CreateRate)
	}
}

// CreateRateRequest запрос на создание ставки. Указывается user_id либо role.
type CreateRateRequest struct {
	UserID        *uint               `json:"user_id"`
	Role          string              `json:"role"`
	HourlyRate    decimal.Decimal     `json:"hourly_rate" binding:"required"`
	OvertimeRate  decimal.NullDecimal `json:"overtime_rate"`
	EffectiveFrom time.Time           `json:"effective_from" binding:"required"`
	EffectiveTo   *time.Time          `json:"effective_to"`
}

// target определяет адресата ставки
func (r CreateRateRequest) target() (models.RateTarget, bool) {
	switch {
	case r.UserID != nil && r.Role == "":
		return models.UserTarget(*r.UserID), true
	case r.UserID == nil && r.Role != "":
		return models.RoleTarget(r.Role), true
	default:
		return models.RateTarget{}, false
	}
}

// CreateRate создает ставку
func (api *LaborRateAPI) CreateRate(c *gin.Context) {
	var req CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Некорректные данные: "+err.Error())
		return
	}

	target, ok := req.target()
	if !ok {
		badRequest(c, "Необходимо указать либо user_id, либо role")
		return
	}

	rate, err := api.rates.CreateRate(c.Request.Context(), middleware.GetCompanyID(c), services.CreateRateInput{
		Target:        target,
		HourlyRate:    req.HourlyRate,
		OvertimeRate:  req.OvertimeRate,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		ActorID:       actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, rate)
}
