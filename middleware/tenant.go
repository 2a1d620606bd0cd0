package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
	"backend_cmms/services"
)

// TenantMiddleware определяет компанию запроса по токену
type TenantMiddleware struct {
	DB    *gorm.DB
	Cache *services.CacheService
}

// NewTenantMiddleware создает новый экземпляр TenantMiddleware
func NewTenantMiddleware(db *gorm.DB, cache *services.CacheService) *TenantMiddleware {
	return &TenantMiddleware{DB: db, Cache: cache}
}

// SetTenant загружает компанию из company_id токена и проверяет ее активность.
// Должен идти после RequireAuth.
func (tm *TenantMiddleware) SetTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := c.GetUint(ContextCompanyID)
		if companyID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Не удалось определить компанию",
			})
			c.Abort()
			return
		}

		company, err := tm.getCompanyByID(c, companyID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Компания не найдена",
			})
			c.Abort()
			return
		}

		// Проверяем активность компании
		if !company.IsActive {
			c.JSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "Компания деактивирована",
			})
			c.Abort()
			return
		}

		c.Set(ContextCompany, company)
		c.Next()
	}
}

// getCompanyByID получает компанию по ID с кэшированием
func (tm *TenantMiddleware) getCompanyByID(c *gin.Context, companyID uint) (*models.Company, error) {
	ctx := c.Request.Context()
	if company, err := tm.Cache.GetCachedCompany(ctx, companyID); err == nil {
		return company, nil
	}

	var company models.Company
	if err := tm.DB.WithContext(ctx).First(&company, companyID).Error; err != nil {
		return nil, err
	}

	if err := tm.Cache.CacheCompany(ctx, &company); err != nil {
		logger.WithCompany(companyID).WithError(err).Warn("Не удалось закэшировать компанию")
	}
	return &company, nil
}

// GetCompanyID возвращает ID компании текущего запроса
func GetCompanyID(c *gin.Context) uint {
	return c.GetUint(ContextCompanyID)
}

// GetCompany возвращает компанию текущего запроса
func GetCompany(c *gin.Context) *models.Company {
	if value, exists := c.Get(ContextCompany); exists {
		if company, ok := value.(*models.Company); ok {
			return company
		}
	}
	return nil
}
