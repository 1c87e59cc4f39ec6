package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperation(t *testing.T) {
	assert.Equal(t, "SELECT", operation("\n  select id FROM habits"))
	assert.Equal(t, "INSERT", operation("INSERT INTO habit_logs"))
	assert.Equal(t, "unknown", operation("   "))
}

func TestSlowQueryTracer_LogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 500*time.Millisecond)

	fast := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(fast, nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 0, logs.Len())

	slow := context.WithValue(context.Background(), queryStartKey{}, queryStart{
		at:  time.Now().Add(-time.Second),
		sql: "SELECT * FROM habit_logs WHERE habit_id = $1",
	})
	tracer.TraceQueryEnd(slow, nil, pgx.TraceQueryEndData{})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "slow-query", entries[0].Message)
	}
}

func TestNewSlowQueryTracer_DefaultThreshold(t *testing.T) {
	tracer := NewSlowQueryTracer(zap.NewNop(), 0)
	assert.Equal(t, 100*time.Millisecond, tracer.slowThreshold)
}
