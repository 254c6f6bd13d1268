// Package dispatch routes incoming updates through middleware to
// command handlers, callback handlers and message watchers.
package dispatch

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
)

// Ctx carries one parsed incoming message through the pipeline.
type Ctx struct {
	Update  *models.Update
	Msg     *models.Message
	Chat    *models.Chat
	Sender  *models.User
	Command string
	Args    []string
	// IsAnonymous is set when the message was posted by an anonymous
	// chat admin, so Sender cannot be trusted for permission checks.
	IsAnonymous bool
}

func (c *Ctx) IsGroup() bool {
	return c.Chat.Type == models.ChatTypeGroup || c.Chat.Type == models.ChatTypeSupergroup
}

func (c *Ctx) IsPrivate() bool {
	return c.Chat.Type == models.ChatTypePrivate
}

// Verdict is a middleware decision. The first denial stops the chain.
type Verdict struct {
	Allowed bool
	Reason  string
	// Silent suppresses the denial reply, used when answering would
	// just be noise (disabled commands, rate limiting).
	Silent bool
	// DeleteMessage asks the router to remove the triggering message.
	DeleteMessage bool
}

type Middleware interface {
	Name() string
	Check(ctx context.Context, c *Ctx, reg *Registration) (*Verdict, error)
}

// HandlerFunc runs an allowed command. A non-empty return value is
// appended to the chat's log channel.
type HandlerFunc func(ctx context.Context, c *Ctx) (string, error)

// Registration describes one command.
type Registration struct {
	Name    string
	Aliases []string
	Req     privilege.Requirement
	// Disableable commands can be switched off per chat; AdminOK lets
	// chat admins keep using them while disabled.
	Disableable bool
	AdminOK     bool
	GroupOnly   bool
	Handler     HandlerFunc
}

// Watcher inspects every group message. Watchers run in ascending
// Group order; command handling itself runs at WatcherGroupCommands.
type Watcher struct {
	Name  string
	Group int
	Fn    func(ctx context.Context, c *Ctx) error
}

const (
	WatcherGroupFlood    = -5
	WatcherGroupCleaner  = 13
	WatcherGroupCommands = 40
	WatcherGroupService  = 110
)

// CallbackCtx carries one callback query plus its data split on "/".
type CallbackCtx struct {
	Query *models.CallbackQuery
	Parts []string
}

type CallbackFunc func(ctx context.Context, c *CallbackCtx) error
