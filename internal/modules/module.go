// Package modules wires the bot's feature commands into the dispatcher.
package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
)

// privilegeChecker is the slice of the privilege gate the watchers
// consult before restricting or removing someone. *privilege.Gate
// satisfies it.
type privilegeChecker interface {
	BanProtected(ctx context.Context, chatID, userID int64) (bool, error)
	BotCan(ctx context.Context, chatID int64, perm privilege.AdminPerm) (bool, error)
}

// BotAPI is the slice of the bot client the modules use. *bot.Bot
// satisfies it.
type BotAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error)
	BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error)
	UnbanChatMember(ctx context.Context, params *bot.UnbanChatMemberParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// StatsReporter lets a module contribute a line to the stats overview.
type StatsReporter interface {
	Stats(ctx context.Context) (string, error)
}

// Migratable is implemented by every store keyed on chat ID, so a
// group upgrading to a supergroup keeps its settings.
type Migratable interface {
	MigrateChat(oldChatID, newChatID int64) error
}

func reply(ctx context.Context, api BotAPI, c *dispatch.Ctx, text string) error {
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.Chat.ID,
		Text:   text,
		ReplyParameters: &models.ReplyParameters{
			MessageID: c.Msg.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func replyHTML(ctx context.Context, api BotAPI, c *dispatch.Ctx, text string) error {
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    c.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		ReplyParameters: &models.ReplyParameters{
			MessageID: c.Msg.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// targetUser resolves the user a command acts on: a reply wins, then a
// numeric ID argument.
func targetUser(c *dispatch.Ctx) (int64, string, bool) {
	if c.Msg.ReplyToMessage != nil && c.Msg.ReplyToMessage.From != nil {
		from := c.Msg.ReplyToMessage.From
		return from.ID, from.FirstName, true
	}
	if len(c.Args) > 0 {
		if id, err := strconv.ParseInt(c.Args[0], 10, 64); err == nil {
			return id, strconv.FormatInt(id, 10), true
		}
	}
	return 0, "", false
}

// parseOnOff understands the yes/no vocabulary shared by the toggle
// commands. ok is false for anything else.
func parseOnOff(arg string) (on, ok bool) {
	switch strings.ToLower(arg) {
	case "on", "yes", "true":
		return true, true
	case "off", "no", "false":
		return false, true
	default:
		return false, false
	}
}

func senderName(c *dispatch.Ctx) string {
	if c.Sender == nil {
		return "anonymous admin"
	}
	name := c.Sender.FirstName
	if c.Sender.LastName != "" {
		name += " " + c.Sender.LastName
	}
	return name
}

// logLine formats a log channel entry header the modules share.
func logLine(c *dispatch.Ctx, event, detail string) string {
	return fmt.Sprintf("#%s\n<b>Admin</b>: %s\n%s", strings.ToUpper(event), senderName(c), detail)
}
