package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
	"backend_cmms/services"
	"backend_cmms/testutils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tenantRouter эмулирует RequireAuth, выставляя company_id напрямую
func tenantRouter(tm *TenantMiddleware, companyID uint) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if companyID != 0 {
			c.Set(ContextCompanyID, companyID)
		}
		c.Next()
	})
	router.Use(tm.SetTenant())
	router.GET("/whoami", func(c *gin.Context) {
		company := GetCompany(c)
		c.JSON(http.StatusOK, gin.H{"company_id": GetCompanyID(c), "name": company.Name})
	})
	return router
}

func TestSetTenant(t *testing.T) {
	db := testutils.SetupTestDB(t)
	company := testutils.CreateTestCompany(t, db, "acme")
	tm := NewTenantMiddleware(db, services.NewCacheService(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	tenantRouter(tm, company.ID).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(company.ID), body["company_id"])
	assert.Equal(t, "acme", body["name"])
}

func TestSetTenant_Rejections(t *testing.T) {
	db := testutils.SetupTestDB(t)
	inactive := testutils.CreateTestCompany(t, db, "closed")
	require.NoError(t, db.Model(&models.Company{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	tm := NewTenantMiddleware(db, services.NewCacheService(nil))

	tests := []struct {
		name      string
		companyID uint
		status    int
	}{
		{"нет компании в токене", 0, http.StatusUnauthorized},
		{"компания не найдена", 9999, http.StatusUnauthorized},
		{"компания деактивирована", inactive.ID, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tenantRouter(tm, tt.companyID).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"error"`)
		})
	}
}
