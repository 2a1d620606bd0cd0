package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend_cmms/logger"
	"backend_cmms/services"
)

// LoginRequest учетные данные для выдачи токена
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=3,max=64"`
}

// AuthAPI представляет API выдачи токенов
type AuthAPI struct {
	auth *services.AuthService
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(auth *services.AuthService) *AuthAPI {
	return &AuthAPI{auth: auth}
}

// IssueToken выдает JWT по логину и паролю
// POST /api/auth/token
func (api *AuthAPI) IssueToken(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid username or password"})
		return
	}

	entry := logger.Log.WithField("username", req.Username).WithField("ip_address", c.ClientIP())

	token, err := api.auth.IssueToken(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		entry.Warn("Неудачная попытка входа")
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "Invalid username or password"})
		return
	}
	if err != nil {
		entry.WithError(err).Error("Ошибка выдачи токена")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "Внутренняя ошибка сервера"})
		return
	}

	entry.WithField("user_id", token.User.ID).Info("Токен выдан")
	respondData(c, http.StatusOK, token)
}
