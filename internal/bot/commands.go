// internal/bot/commands.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownCommand is returned for commands nobody registered.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrCommandArgumentInvalid is returned for malformed command arguments.
	ErrCommandArgumentInvalid = errors.New("invalid command argument")
)

// ArgumentError explains how a command should have been called.
type ArgumentError struct {
	Command string
	Usage   string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrCommandArgumentInvalid
}

// HandlerFunc executes a command and returns the reply text.
type HandlerFunc func(ctx context.Context, args []string) (string, error)

// Command описывает команду оператора
type Command struct {
	Name        string
	Description string
	Usage       string
	Handler     HandlerFunc
}

// CommandBus шина для обработки команд оператора
type CommandBus struct {
	mu       sync.RWMutex
	commands map[string]*Command
	order    []string
	logger   *zap.Logger
}

// NewCommandBus создает новую шину команд
func NewCommandBus(logger *zap.Logger) *CommandBus {
	return &CommandBus{
		commands: make(map[string]*Command),
		logger:   logger.Named("command_bus"),
	}
}

// Register регистрирует команду; повторная регистрация имени запрещена
func (bus *CommandBus) Register(cmd Command) error {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cmd.Name)), "/")
	if name == "" || cmd.Handler == nil {
		return fmt.Errorf("command %q: name and handler are required", cmd.Name)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if _, exists := bus.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	cmd.Name = name
	bus.commands[name] = &cmd
	bus.order = append(bus.order, name)

	bus.logger.Debug("Command registered", zap.String("command", name))
	return nil
}

// Dispatch выполняет команду name. При ошибке аргументов вместе с ошибкой
// возвращается подсказка по использованию в reply.
func (bus *CommandBus) Dispatch(ctx context.Context, name string, args []string) (string, error) {
	name = strings.TrimPrefix(strings.ToLower(name), "/")

	bus.mu.RLock()
	cmd, exists := bus.commands[name]
	bus.mu.RUnlock()

	if !exists {
		bus.logger.Warn("No handler for command", zap.String("command", name))
		return "", fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}

	log := bus.logger.With(zap.String("command", name), zap.Strings("args", args))
	log.Info("Executing command")

	reply, err := cmd.Handler(ctx, args)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			log.Info("Command arguments rejected", zap.Error(err))
			return "Usage: " + argErr.Usage, err
		}
		log.Error("Command execution failed", zap.Error(err))
		return "", fmt.Errorf("command /%s failed: %w", name, err)
	}
	return reply, nil
}

// Commands возвращает команды в порядке регистрации
func (bus *CommandBus) Commands() []Command {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	out := make([]Command, 0, len(bus.order))
	for _, name := range bus.order {
		out = append(out, *bus.commands[name])
	}
	return out
}

// invalidArgs builds the ArgumentError for cmd.
func invalidArgs(cmd, usage string, format string, a ...any) error {
	return &ArgumentError{Command: cmd, Usage: usage, Err: fmt.Errorf(format, a...)}
}
