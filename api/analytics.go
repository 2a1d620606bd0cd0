package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
	"backend_cmms/services"
)

// AnalyticsAPI представляет API аналитики OEE и выгрузки отчетов
type AnalyticsAPI struct {
	oee     *services.OeeService
	reports *services.ReportService
}

// NewAnalyticsAPI создает новый экземпляр AnalyticsAPI
func NewAnalyticsAPI(oee *services.OeeService, reports *services.ReportService) *AnalyticsAPI {
	return &AnalyticsAPI{oee: oee, reports: reports}
}

// RegisterRoutes регистрирует маршруты аналитики
func (api *AnalyticsAPI) RegisterRoutes(router *gin.RouterGroup) {
	analytics := router.Group("/analytics")
	{
		analytics.GET("/oee", api.GetOeeSummary)
		analytics.GET("/pareto", api.GetPareto)
		analytics.GET("/machines", api.CompareMachines)
		analytics.GET("/export.xlsx", api.ExportExcel)
		analytics.GET("/export.pdf", api.ExportPDF)
	}
}

// parseFilter собирает фильтр аналитики из параметров запроса
func parseFilter(c *gin.Context) (services.AnalyticsFilter, error) {
	from, to, err := parseDateRange(c)
	if err != nil {
		return services.AnalyticsFilter{}, err
	}
	machineID, err := parseOptionalUintQuery(c, "machine_id")
	if err != nil {
		return services.AnalyticsFilter{}, err
	}
	return services.AnalyticsFilter{DateFrom: from, DateTo: to, MachineID: machineID}, nil
}

// GetOeeSummary возвращает сводный OEE за период
func (api *AnalyticsAPI) GetOeeSummary(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	summary, err := api.oee.ComputeOeeSummary(c.Request.Context(), middleware.GetCompanyID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

// GetPareto возвращает Парето потерь по категориям простоя
func (api *AnalyticsAPI) GetPareto(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	entries, err := api.oee.ComputeParetoLoss(c.Request.Context(), middleware.GetCompanyID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, entries)
}

// CompareMachines возвращает сравнение оборудования по OEE
func (api *AnalyticsAPI) CompareMachines(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	machines, err := api.oee.CompareMachines(c.Request.Context(), middleware.GetCompanyID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, machines)
}

// ExportExcel выгружает аналитический отчет в Excel
func (api *AnalyticsAPI) ExportExcel(c *gin.Context) {
	api.export(c, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", api.reports.WriteExcel)
}

// ExportPDF выгружает аналитический отчет в PDF
func (api *AnalyticsAPI) ExportPDF(c *gin.Context) {
	api.export(c, "pdf", "application/pdf", api.reports.WritePDF)
}

// export строит отчет за период и отдает его файлом
func (api *AnalyticsAPI) export(c *gin.Context, ext, contentType string, write func(io.Writer, *services.AnalyticsReport) error) {
	filter, err := parseFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	report, err := api.reports.BuildAnalyticsReport(c.Request.Context(), middleware.GetCompanyID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, report); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("analytics_%s_%s.%s", filter.DateFrom.Format(dateLayout), filter.DateTo.Format(dateLayout), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
