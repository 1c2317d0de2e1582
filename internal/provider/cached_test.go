package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/config"
	"github.com/wonny/qualmom/pkg/logger"
	"github.com/wonny/qualmom/pkg/redis"
)

func TestCached_PassThroughWhenRedisDisabled(t *testing.T) {
	ctx := context.Background()
	client, err := redis.New(ctx, &config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	src := NewMemory()
	src.SetUniverse(day(2024, 1, 2), "A", "B")
	src.SetFactor("A", contracts.FactorROIC, day(2024, 1, 2), contracts.Present(0.3))
	src.SetCloses("A", day(2024, 1, 12), 10, 11, 12)

	cached := NewCached(src, redis.NewCache(client, "test"), 0, logger.NewNop())

	u, err := cached.Universe(ctx, day(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, []contracts.Security{"A", "B"}, u)

	v, err := cached.Factor(ctx, "A", contracts.FactorROIC, day(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, contracts.Present(0.3), v)

	closes, err := cached.Closes(ctx, "A", day(2024, 1, 12), 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12}, closes)

	p, err := cached.Price(ctx, "A", day(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, 12.0, p)

	// errors propagate unchanged
	_, err = cached.Price(ctx, "ZZZ", day(2024, 1, 12))
	assert.ErrorIs(t, err, ErrNotFound)
}
