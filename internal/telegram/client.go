// internal/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const defaultSendTries = 3

// Dispatcher executes operator commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args []string) (string, error)
}

// CommandInfo is shown in the chat command menu.
type CommandInfo struct {
	Name        string
	Description string
}

// Config wires a Client.
type Config struct {
	Token      string
	Dispatcher Dispatcher
	// ServerURL overrides the Bot API endpoint.
	ServerURL string
	SkipGetMe bool
	SendTries uint
	Logger    *zap.Logger
}

// Client is the chat transport: it feeds commands into the Dispatcher and
// fans notifications out to every chat that has talked to the bot.
type Client struct {
	bot        *bot.Bot
	dispatcher Dispatcher
	sendTries  uint
	logger     *zap.Logger

	mu    sync.Mutex
	chats map[int64]struct{}
}

// New creates the client. It does not start polling; see Run.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	c := &Client{
		dispatcher: cfg.Dispatcher,
		sendTries:  cfg.SendTries,
		logger:     cfg.Logger.Named("telegram"),
		chats:      make(map[int64]struct{}),
	}
	if c.sendTries == 0 {
		c.sendTries = defaultSendTries
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handle),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.ServerURL))
	}
	if cfg.SkipGetMe {
		opts = append(opts, bot.WithSkipGetMe())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c.bot = b
	return c, nil
}

// Run publishes the command menu and polls for updates until ctx is cancelled.
func (c *Client) Run(ctx context.Context, commands []CommandInfo) error {
	if len(commands) > 0 {
		if ok, err := c.bot.SetMyCommands(ctx, menu(commands)); err != nil {
			c.logger.Warn("Could not set bot commands", zap.Error(err))
		} else if !ok {
			c.logger.Warn("Bot commands were not accepted")
		}
	}

	c.logger.Info("🤖 Telegram bot started")
	c.bot.Start(ctx)
	c.logger.Info("Telegram bot stopped")
	return ctx.Err()
}

func menu(commands []CommandInfo) *bot.SetMyCommandsParams {
	cmds := make([]models.BotCommand, 0, len(commands))
	for _, cmd := range commands {
		cmds = append(cmds, models.BotCommand{Command: cmd.Name, Description: cmd.Description})
	}
	return &bot.SetMyCommandsParams{Commands: cmds}
}

// Chats returns the known chat IDs in ascending order.
func (c *Client) Chats() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int64, 0, len(c.chats))
	for id := range c.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Client) rememberChat(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.chats[id]; !ok {
		c.chats[id] = struct{}{}
		c.logger.Info("New chat registered for notifications", zap.Int64("chat_id", id))
	}
}

// Notify sends text to every known chat. A chat that keeps failing does not
// stop delivery to the others; with no chats this is a no-op.
func (c *Client) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range c.Chats() {
		if err := c.send(ctx, chatID, text); err != nil {
			c.logger.Warn("Could not notify chat", zap.Int64("chat_id", chatID), zap.Error(err))
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) send(ctx context.Context, chatID int64, text string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (*models.Message, error) {
		return c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.sendTries),
		backoff.WithMaxElapsedTime(10*time.Second))
	return err
}

func (c *Client) handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}
	msg := update.Message
	c.rememberChat(msg.Chat.ID)

	name, args, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}

	reply, err := c.dispatcher.Dispatch(ctx, name, args)
	if err != nil && reply == "" {
		reply = err.Error()
	}
	if reply == "" {
		return
	}

	_, err = c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            reply,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		c.logger.Error("Could not reply to command", zap.String("command", name), zap.Error(err))
	}
}

// ParseCommand splits "/name@bot arg1 arg2" into the lower-cased name and
// its arguments. ok is false for text that is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
