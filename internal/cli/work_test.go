package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rcliao/personae/internal/config"
	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/store"
)

func setup(t *testing.T, dims int) (*store.SQLiteStore, *observer.ObservedLogs) {
	t.Helper()
	cfg = config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Database.Dimensions = dims

	core, logs := observer.New(zapcore.InfoLevel)
	logger = zap.New(core)

	s, err := openStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, logs
}

func TestReportQueueLogsJobCounts(t *testing.T) {
	s, logs := setup(t, 3)
	_, err := s.UnshiftJob(context.Background(), model.Ping{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reportQueue(ctx, s, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("queue").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	fields := logs.FilterMessage("queue").All()[0].ContextMap()
	assert.EqualValues(t, 1, fields["pending"])
	assert.EqualValues(t, 0, fields["finished"])
}

func TestReportQueueFailsWhenStoreCloses(t *testing.T) {
	s, _ := setup(t, 3)
	require.NoError(t, s.Close())

	err := reportQueue(context.Background(), s, 10*time.Millisecond)
	assert.ErrorContains(t, err, "queue report")
}

func TestNewModelRejectsDimensionMismatch(t *testing.T) {
	s, _ := setup(t, 3)
	cfg.LLM.APIKey = "sk-test"

	_, err := newModel(s)
	assert.ErrorContains(t, err, "store expects 3")

	cfg.LLM.APIKey = ""
	_, err = newModel(s)
	assert.ErrorContains(t, err, "no LLM configured")
}

func TestNewModelMatchingDimensions(t *testing.T) {
	s, _ := setup(t, 1536)
	cfg.LLM.APIKey = "sk-test"

	m, err := newModel(s)
	require.NoError(t, err)
	assert.Equal(t, s.Dimensions(), m.Dims())
}
