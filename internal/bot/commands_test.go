// internal/bot/commands_test.go
package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func echo(_ context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", invalidArgs("echo", "/echo <text>", "nothing to echo")
	}
	return args[0], nil
}

func TestCommandBus_Register(t *testing.T) {
	bus := NewCommandBus(zaptest.NewLogger(t))

	require.NoError(t, bus.Register(Command{Name: "/Echo", Handler: echo}))
	assert.Error(t, bus.Register(Command{Name: "echo", Handler: echo}), "duplicate")
	assert.Error(t, bus.Register(Command{Name: "", Handler: echo}))
	assert.Error(t, bus.Register(Command{Name: "nohandler"}))

	cmds := bus.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "echo", cmds[0].Name)
}

func TestCommandBus_Dispatch(t *testing.T) {
	boom := errors.New("boom")
	bus := NewCommandBus(zaptest.NewLogger(t))
	require.NoError(t, bus.Register(Command{Name: "echo", Handler: echo}))
	require.NoError(t, bus.Register(Command{Name: "fail", Handler: func(context.Context, []string) (string, error) {
		return "", boom
	}}))
	ctx := context.Background()

	reply, err := bus.Dispatch(ctx, "/ECHO", []string{"hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)

	reply, err = bus.Dispatch(ctx, "echo", nil)
	assert.ErrorIs(t, err, ErrCommandArgumentInvalid)
	assert.Equal(t, "Usage: /echo <text>", reply)

	reply, err = bus.Dispatch(ctx, "fail", nil)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, reply)

	_, err = bus.Dispatch(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
