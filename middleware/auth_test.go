package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"backend_cmms/models"
	"backend_cmms/services"
)

// stubValidator принимает только токен "good"
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*services.Claims, error) {
	if token != "good" {
		return nil, services.ErrInvalidToken
	}
	return &services.Claims{UserID: 7, CompanyID: 3, Role: models.RolePlanner}, nil
}

func authRouter() *gin.Engine {
	router := gin.New()
	am := NewAuthMiddleware(stubValidator{})
	api := router.Group("/api", am.RequireAuth())
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    GetUserID(c),
			"company_id": GetCompanyID(c),
			"role":       GetRole(c),
		})
	})
	api.GET("/admin", RequireRole(models.RoleAdmin, models.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	api.GET("/plan", RequireRole(models.RolePlanner), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"без заголовка", "", http.StatusUnauthorized},
		{"без Bearer", "good", http.StatusUnauthorized},
		{"пустой токен", "Bearer ", http.StatusUnauthorized},
		{"недействительный токен", "Bearer bad", http.StatusUnauthorized},
		{"валидный токен", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			authRouter().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	authRouter().ServeHTTP(w, req)
	assert.JSONEq(t, `{"user_id":7,"company_id":3,"role":"planner"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	authRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/plan", nil)
	req.Header.Set("Authorization", "Bearer good")
	authRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimit_WithoutRedis(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(nil, RateLimitConfig{Requests: 1, KeyGenerator: DefaultKeyGenerator}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
