package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(Config{Cron: "not a cron"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewManager(Config{Cron: "0 8 1 * *", Timezone: "Mars/Olympus"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewManager(Config{Cron: "0 0 8 1 * *"}, nil, zap.NewNop())
	assert.Error(t, err, "six-field expressions are rejected")
}

func TestRunOnStartAndStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	job := func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}

	cfg := DefaultConfig()
	cfg.RunOnStart = true
	m, err := NewManager(cfg, job, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}

	next := m.Next()
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 8, next.Hour())

	m.Stop()
	m.Stop()
	assert.Equal(t, 1, m.Runs())
	assert.True(t, m.Next().IsZero())
}

func TestRunOnStartSkipsOverlappingTicks(t *testing.T) {
	var active, peak atomic.Int32
	job := func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(1500 * time.Millisecond)
		return nil
	}

	m, err := NewManager(Config{Cron: "@every 1s", RunOnStart: true}, job, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	// the tick at one second lands while the run on start is still busy
	time.Sleep(2200 * time.Millisecond)
	m.Stop()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int32(0), active.Load())
	assert.GreaterOrEqual(t, m.Runs(), 1)
}

func TestFailingJobIsCounted(t *testing.T) {
	m, err := NewManager(Config{Cron: "@daily"}, func(ctx context.Context) error {
		return errors.New("roster missing")
	}, zap.NewNop())
	require.NoError(t, err)

	m.execute(context.Background())
	assert.Equal(t, 1, m.Runs())
}

func TestNextExecution(t *testing.T) {
	from := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	next, err := NextExecution("0 8 1 * *", "America/Sao_Paulo", from)
	require.NoError(t, err)
	assert.Equal(t, time.April, next.Month())
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, "America/Sao_Paulo", next.Location().String())

	_, err = NextExecution("bad", "UTC", from)
	assert.Error(t, err)
	_, err = NextExecution("@daily", "Nowhere/City", from)
	assert.Error(t, err)
}

func TestDescribeCronExpression(t *testing.T) {
	assert.Equal(t, "First day of every month at 8:00 AM", DescribeCronExpression("0 8 1 * *"))
	assert.Equal(t, "Every hour", DescribeCronExpression("@hourly"))
	assert.Equal(t, "5 4 * * *", DescribeCronExpression("5 4 * * *"))
}
