package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync/pkg/logger"
)

type ctxKey struct{}

func TestNew(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filters records", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat("xml"))
		})
	})

	t.Run("context extractor", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
				v, ok := ctx.Value(ctxKey{}).(string)
				return slog.String("trace", v), ok
			}),
		)
		ctx := context.WithValue(context.Background(), ctxKey{}, "abc")
		log.InfoContext(ctx, "with ctx")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "abc", entry["trace"])
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("development", "svc"), logger.WithOutput(buf))
		log.Debug("msg")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "service=svc")
	})

	t.Run("production", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "svc"), logger.WithOutput(buf))
		log.Debug("hidden")
		log.Info("msg")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "production", entry["env"])
		assert.Equal(t, "msg", entry["msg"])
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nonsense"))
}

func TestAttrs(t *testing.T) {
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	err := errors.New("boom")
	assert.Equal(t, err, logger.Error(err).Value.Any())

	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
	assert.Equal(t, "request_id", logger.RequestID("r1").Key)

	id := uuid.New()
	assert.Equal(t, id.String(), logger.ItemID(id).Value.String())
	assert.Equal(t, "table_id", logger.TableID(id).Key)
	assert.Equal(t, int64(401), logger.Status(401).Value.Int64())
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
}

func TestOperationExtractor(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(logger.OperationExtractor))

	log.InfoContext(logger.WithOperation(context.Background(), "op-1"), "tagged")
	log.InfoContext(context.Background(), "plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var tagged, plain map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &tagged))
	require.NoError(t, json.Unmarshal(lines[1], &plain))
	assert.Equal(t, "op-1", tagged["op"])
	assert.NotContains(t, plain, "op")
}
