package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"backend_cmms/database"
	"backend_cmms/logger"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	KeyGenerator func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// UserKeyGenerator генерирует ключ на основе пользователя
func UserKeyGenerator(c *gin.Context) string {
	userID := GetUserID(c)
	if userID == 0 {
		return DefaultKeyGenerator(c)
	}
	return fmt.Sprintf("user:%d", userID)
}

// RateLimit создает middleware для ограничения частоты запросов.
// Без Redis ограничение не применяется.
func RateLimit(client *redis.Client, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		key := "rate_limit:" + config.KeyGenerator(c)
		allowed, current, err := database.RateLimitCheck(c.Request.Context(), client, key, int64(config.Requests), config.Window)
		if err != nil {
			// В случае ошибки Redis пропускаем запрос
			logger.Log.WithError(err).Warn("Ошибка проверки rate limit")
			c.Next()
			return
		}

		remaining := int64(config.Requests) - current
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error":  "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per %v",
					config.Requests, config.Window),
				"retry_after": config.Window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ModerateRateLimit ограничение для обычных API по настройкам безопасности
func ModerateRateLimit(client *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	return RateLimit(client, RateLimitConfig{
		Requests:     requests,
		Window:       window,
		KeyGenerator: UserKeyGenerator,
	})
}

// AuthRateLimit ограничение для выдачи токенов
func AuthRateLimit(client *redis.Client) gin.HandlerFunc {
	return RateLimit(client, RateLimitConfig{
		Requests:     5,
		Window:       time.Minute,
		KeyGenerator: DefaultKeyGenerator,
	})
}
