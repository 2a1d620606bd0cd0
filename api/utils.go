package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backend_cmms/middleware"
)

// dateLayout формат дат в параметрах запроса
const dateLayout = "2006-01-02"

// companyLocation возвращает часовой пояс компании запроса
func companyLocation(c *gin.Context) *time.Location {
	if company := middleware.GetCompany(c); company != nil {
		return company.Location()
	}
	return time.UTC
}

// parseIDParam разбирает числовой параметр пути
func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("некорректный %s", name)
	}
	return uint(id), nil
}

// parseOptionalUintQuery разбирает необязательный числовой параметр запроса
func parseOptionalUintQuery(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный %s", name)
	}
	id := uint(v)
	return &id, nil
}

// parseDateRange разбирает date_from и date_to в часовом поясе компании.
// Без параметров возвращает последние 30 дней.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	loc := companyLocation(c)
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	from := today.AddDate(0, 0, -30)
	to := today
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return from, to, fmt.Errorf("некорректная дата date_from, ожидается %s", dateLayout)
		}
		from = parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return from, to, fmt.Errorf("некорректная дата date_to, ожидается %s", dateLayout)
		}
		to = parsed
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("date_to раньше date_from")
	}
	return from, to, nil
}

// actorID возвращает ID текущего пользователя для аудита
func actorID(c *gin.Context) *uint {
	id := middleware.GetUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}
