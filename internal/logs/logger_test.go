package logs

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("LevelFiltering", func(t *testing.T) {
		logger := NewLogger(10, INFO)
		logger.Debug("should not be logged")
		logger.Info("should be logged")
		logger.Warn("should be logged")
		logger.Error("should be logged")

		entries := logger.GetLast(10)
		assert.Len(t, entries, 3, "DEBUG should be filtered below INFO")
		assert.Equal(t, INFO, entries[0].Level)
		assert.Equal(t, WARN, entries[1].Level)
		assert.Equal(t, ERROR, entries[2].Level)
	})

	t.Run("RingBufferBehavior", func(t *testing.T) {
		logger := NewLogger(2, DEBUG)

		logger.Info("first")
		logger.Info("second")
		logger.Info("third")

		entries := logger.GetLast(10)
		assert.Len(t, entries, 2)
		assert.Equal(t, "second", entries[0].Message)
		assert.Equal(t, "third", entries[1].Message)
	})

	t.Run("ConcurrentLogging", func(t *testing.T) {
		logger := NewLogger(100, DEBUG)
		var wg sync.WaitGroup
		numLogs := 50

		for i := 0; i < numLogs; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				logger.Infof("concurrent log %d", i)
			}(i)
		}
		wg.Wait()

		assert.Len(t, logger.GetLast(100), numLogs)
	})

	t.Run("GetLastBoundaries", func(t *testing.T) {
		logger := NewLogger(10, DEBUG)
		logger.Info("msg1")
		logger.Info("msg2")
		logger.Info("msg3")

		assert.Len(t, logger.GetLast(10), 3)
		assert.Len(t, logger.GetLast(3), 3)

		lastTwo := logger.GetLast(2)
		require.Len(t, lastTwo, 2)
		assert.Equal(t, "msg2", lastTwo[0].Message)
		assert.Equal(t, "msg3", lastTwo[1].Message)
	})

	t.Run("DeepCopyProtection", func(t *testing.T) {
		logger := NewLogger(10, DEBUG)
		logger.Info("original message")

		entries := logger.GetLast(1)
		entries[0].Message = "modified message"

		assert.Equal(t, "original message", logger.GetLast(1)[0].Message)
	})

	t.Run("ChildSharesBuffer", func(t *testing.T) {
		logger := NewLogger(10, DEBUG)
		child := logger.With("cache")

		logger.Info("root")
		child.Warnf("write failed for %s", "ipn_escuelas")

		entries := logger.GetLast(10)
		require.Len(t, entries, 2)
		assert.Equal(t, "", entries[0].Component)
		assert.Equal(t, "cache", entries[1].Component)
		assert.Equal(t, "write failed for ipn_escuelas", entries[1].Message)
	})

	t.Run("Mirror", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(10, DEBUG)
		logger.Mirror(&buf)

		logger.With("device").Info("device id stored")

		assert.Contains(t, buf.String(), "INFO")
		assert.Contains(t, buf.String(), "[device] device id stored")
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":  DEBUG,
		" WARN ": WARN,
		"error":  ERROR,
		"info":   INFO,
		"":       INFO,
		"trace":  INFO,
	}
	for in, want := range cases {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}
