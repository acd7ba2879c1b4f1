package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestShutdownHandler_ClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var order []string
	sh.AddFunc("history", func() error { order = append(order, "history"); return nil })
	sh.AddFunc("postgres", func() error { order = append(order, "postgres"); return errors.New("already closed") })
	sh.AddFunc("logger", func() error { order = append(order, "logger"); return nil })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: already closed")
	assert.Equal(t, []string{"logger", "postgres", "history"}, order)

	require.NoError(t, sh.Shutdown(context.Background()), "second shutdown has nothing to close")
	assert.Len(t, order, 3)
}

func TestShutdownHandler_Timeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	sh.AddFunc("stuck", func() error { <-release; return nil })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
}
