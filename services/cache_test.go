package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(nil)
	assert.False(t, cache.Enabled())

	var dest map[string]int
	assert.ErrorIs(t, cache.GetJSON(ctx, "key", &dest), ErrCacheMiss)
	assert.NoError(t, cache.SetJSON(ctx, "key", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, cache.Del(ctx, "key"))
	assert.NoError(t, cache.InvalidateAnalytics(ctx, 1))
	assert.Equal(t, "tenant:1:analytics:v0:oee:params", cache.AnalyticsKey(ctx, 1, "oee", "params"))
}

func TestCacheService_RememberWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(nil)

	calls := 0
	var summary OeeSummary
	err := cache.Remember(ctx, "key", time.Minute, &summary, func() (interface{}, error) {
		calls++
		return &OeeSummary{RunCount: 3, AvgOeePct: 71.5}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, summary.RunCount)
	assert.Equal(t, 71.5, summary.AvgOeePct)

	loadErr := errors.New("db down")
	err = cache.Remember(ctx, "key", time.Minute, &summary, func() (interface{}, error) {
		return nil, loadErr
	})
	assert.ErrorIs(t, err, loadErr)
}
