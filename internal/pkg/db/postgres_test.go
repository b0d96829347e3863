package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"derby-bot/internal/config"
)

func TestPoolConfig_Defaults(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: 5432, User: "derbybot", Name: "derbybot", PoolSize: 10}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, defaultConnectTimeout, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, defaultMaxConnLifetime, pc.MaxConnLifetime)
	assert.Equal(t, defaultMaxConnIdleTime, pc.MaxConnIdleTime)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "derbybot", pc.ConnConfig.Database)
}

func TestPoolConfig_Overrides(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Name: "n", PoolSize: 2,
		ConnectTimeout:  3 * time.Second,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
}

// TestPoolConfigMinConnsProperty: the pool always keeps between one and MaxConns idle
// connections.
// *For any* positive pool size, 1 <= MinConns <= MaxConns.
func TestPoolConfigMinConnsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 500).Draw(t, "size")
		pc, err := PoolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "n", PoolSize: size})
		if err != nil {
			t.Fatal(err)
		}
		if pc.MinConns < 1 || pc.MinConns > pc.MaxConns {
			t.Fatalf("size %d: min %d max %d", size, pc.MinConns, pc.MaxConns)
		}
	})
}
