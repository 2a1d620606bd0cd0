package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend_cmms/logger"
	"backend_cmms/services"
)

// statusForKind сопоставляет вид ошибки сервиса с HTTP статусом
func statusForKind(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError отправляет ошибку сервиса с деталями для клиента
func respondError(c *gin.Context, err error) {
	status := statusForKind(err)
	body := gin.H{
		"status": "error",
		"error":  err.Error(),
	}

	if se, ok := services.AsServiceError(err); ok {
		body["kind"] = se.KindName()
		if se.Field != "" {
			body["field"] = se.Field
		}
		if se.LineItem != nil {
			body["line_item"] = *se.LineItem
		}
	}

	if status == http.StatusInternalServerError {
		logger.Log.WithError(err).WithField("path", c.FullPath()).Error("Ошибка обработки запроса")
		body["error"] = "Внутренняя ошибка сервера"
	}

	c.JSON(status, body)
}

// badRequest отвечает на некорректный запрос
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": "error",
		"error":  message,
		"kind":   "validation",
	})
}

// respondData отправляет успешный ответ
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}
