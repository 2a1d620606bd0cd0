package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/models"
	"backend_cmms/services"
)

// JournalAPI представляет API журналов аудита и уведомлений
type JournalAPI struct {
	audit         *services.AuditService
	notifications *services.NotificationService
}

// NewJournalAPI создает новый экземпляр JournalAPI
func NewJournalAPI(audit *services.AuditService, notifications *services.NotificationService) *JournalAPI {
	return &JournalAPI{audit: audit, notifications: notifications}
}

// RegisterRoutes регистрирует маршруты журналов
func (api *JournalAPI) RegisterRoutes(router *gin.RouterGroup) {
	journal := router.Group("")
	journal.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	{
		journal.GET("/audit-logs", api.GetAuditLogs)
		journal.GET("/notifications/logs", api.GetNotificationLogs)
	}
}

// pagination читает limit и offset
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetAuditLogs возвращает журнал аудита компании
// GET /api/audit-logs
func (api *JournalAPI) GetAuditLogs(c *gin.Context) {
	limit, offset := pagination(c)
	filters := services.AuditFilters{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Limit:    limit,
		Offset:   offset,
	}
	resourceID, err := parseOptionalUintQuery(c, "resource_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	filters.ResourceID = resourceID

	logs, err := api.audit.GetAuditLogs(middleware.GetCompanyID(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, logs)
}

// GetNotificationLogs возвращает журнал уведомлений
// GET /api/notifications/logs
func (api *JournalAPI) GetNotificationLogs(c *gin.Context) {
	if api.notifications == nil {
		respondData(c, http.StatusOK, gin.H{"logs": []models.NotificationLog{}, "total": 0})
		return
	}

	limit, offset := pagination(c)
	logs, total, err := api.notifications.GetNotificationLogs(middleware.GetCompanyID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
