package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DBConfig{
		Host:     "db",
		Port:     5432,
		User:     "habits",
		Password: "p@ss/word",
		Name:     "habits",
	})
	assert.Equal(t, "postgres://habits:p%40ss%2Fword@db:5432/habits?sslmode=disable", dsn)
}

func TestPoolConfig(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "habits", SSLMode: "require", MaxConns: 4, MinConns: 8}

	pool, err := PoolConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(4), pool.MaxConns)
	assert.Equal(t, int32(4), pool.MinConns)
	assert.Equal(t, "p", pool.ConnConfig.Password)
	assert.IsType(t, &SlowQueryTracer{}, pool.ConnConfig.Tracer)

	pool, err = PoolConfig(config.DBConfig{Host: "db", Port: 5432, Name: "habits"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int32(defaultMaxConns), pool.MaxConns)
	assert.Equal(t, int32(defaultMinConns), pool.MinConns)
}
