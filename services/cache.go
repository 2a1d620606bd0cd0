package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"backend_cmms/database"
	"backend_cmms/logger"
	"backend_cmms/models"
)

// ErrCacheMiss ключ отсутствует в кэше или Redis не подключен
var ErrCacheMiss = errors.New("ключ не найден в кэше")

// Константы для TTL кэша
const (
	CacheTTLShort  = 5 * time.Minute  // Для часто изменяемых данных
	CacheTTLMedium = 15 * time.Minute // Для умеренно изменяемых данных
	CacheTTLLong   = 1 * time.Hour    // Для редко изменяемых данных
)

// CacheService предоставляет методы для кэширования. Без Redis все операции пропускаются.
type CacheService struct {
	redis *redis.Client
}

// NewCacheService создает новый экземпляр CacheService
func NewCacheService(redisClient *redis.Client) *CacheService {
	return &CacheService{redis: redisClient}
}

// Enabled проверяет, подключен ли Redis
func (cs *CacheService) Enabled() bool {
	return cs != nil && cs.redis != nil
}

// GetJSON получает JSON объект из кэша
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if !cs.Enabled() {
		return ErrCacheMiss
	}

	val, err := cs.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("ошибка десериализации JSON: %w", err)
	}
	return nil
}

// SetJSON сохраняет JSON объект в кэш
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	return cs.redis.Set(ctx, key, data, ttl).Err()
}

// Del удаляет значение из кэша
func (cs *CacheService) Del(ctx context.Context, key string) error {
	if !cs.Enabled() {
		return nil
	}
	return cs.redis.Del(ctx, key).Err()
}

// analyticsVersion возвращает текущую версию кэша аналитики компании
func (cs *CacheService) analyticsVersion(ctx context.Context, companyID uint) int64 {
	key := database.GenerateCacheKey(companyID, "analytics", "version")
	v, err := cs.redis.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// AnalyticsKey строит ключ результата аналитики с учетом версии
func (cs *CacheService) AnalyticsKey(ctx context.Context, companyID uint, kind, params string) string {
	version := int64(0)
	if cs.Enabled() {
		version = cs.analyticsVersion(ctx, companyID)
	}
	return database.GenerateCacheKey(companyID, "analytics", fmt.Sprintf("v%d:%s:%s", version, kind, params))
}

// InvalidateAnalytics увеличивает версию, старые ключи истекают по TTL
func (cs *CacheService) InvalidateAnalytics(ctx context.Context, companyID uint) error {
	if !cs.Enabled() {
		return nil
	}
	key := database.GenerateCacheKey(companyID, "analytics", "version")
	return cs.redis.Incr(ctx, key).Err()
}

// Remember возвращает значение из кэша либо вычисляет и сохраняет его
func (cs *CacheService) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func() (interface{}, error)) error {
	if err := cs.GetJSON(ctx, key, dest); err == nil {
		return nil
	}

	value, err := load()
	if err != nil {
		return err
	}

	if err := cs.SetJSON(ctx, key, value, ttl); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Не удалось сохранить значение в кэш")
	}

	// Копируем результат в dest через JSON, как при чтении из кэша
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// CacheCompany кэширует компанию для middleware
func (cs *CacheService) CacheCompany(ctx context.Context, company *models.Company) error {
	key := database.GenerateCacheKey(company.ID, "company", "data")
	return cs.SetJSON(ctx, key, company, CacheTTLMedium)
}

// GetCachedCompany получает компанию из кэша
func (cs *CacheService) GetCachedCompany(ctx context.Context, companyID uint) (*models.Company, error) {
	key := database.GenerateCacheKey(companyID, "company", "data")
	var company models.Company
	if err := cs.GetJSON(ctx, key, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// InvalidateCompanyCache инвалидирует кэш компании
func (cs *CacheService) InvalidateCompanyCache(ctx context.Context, companyID uint) error {
	return cs.Del(ctx, database.GenerateCacheKey(companyID, "company", "data"))
}
