package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(api *mockBotAPI, chain ...Middleware) *Router {
	return NewRouter(api, testLogger(), RouterOptions{
		BotUsername: "SpiralBot",
		Chain:       chain,
	})
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text    string
		name    string
		mention string
		args    []string
		ok      bool
	}{
		{"/ban", "ban", "", []string{}, true},
		{"!ban", "ban", "", []string{}, true},
		{"/BAN 5m reason", "ban", "", []string{"5m", "reason"}, true},
		{"/ban@SpiralBot 12345", "ban", "SpiralBot", []string{"12345"}, true},
		{"hello there", "", "", nil, false},
		{"/", "", "", nil, false},
		{"", "", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, mention, args, ok := splitCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.mention, mention)
			assert.ElementsMatch(t, tt.args, args)
		})
	}
}

func TestMentionForOtherBotIgnored(t *testing.T) {
	api := &mockBotAPI{}
	router := newTestRouter(api)
	called := false
	router.RegisterCommand(&Registration{
		Name: "ban",
		Handler: func(context.Context, *Ctx) (string, error) {
			called = true
			return "", nil
		},
	})

	router.HandleUpdate(context.Background(), groupMessage("/ban@OtherBot 5", 7))
	assert.False(t, called, "command addressed to another bot must not run")

	router.HandleUpdate(context.Background(), groupMessage("/ban@spiralbot 5", 7))
	assert.True(t, called, "mention match is case insensitive")
}

func TestChainStopsAtFirstDenial(t *testing.T) {
	api := &mockBotAPI{}
	first := &mockMiddleware{name: "first", verdict: &Verdict{Allowed: false, Reason: "no", DeleteMessage: true}}
	second := &mockMiddleware{name: "second"}
	router := NewRouter(api, testLogger(), RouterOptions{
		BotUsername:          "SpiralBot",
		DeleteDeniedCommands: true,
		Chain:                []Middleware{first, second},
	})
	called := false
	router.RegisterCommand(&Registration{
		Name: "ban",
		Handler: func(context.Context, *Ctx) (string, error) {
			called = true
			return "", nil
		},
	})

	router.HandleUpdate(context.Background(), groupMessage("/ban", 7))

	assert.False(t, called)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls, "chain must stop at the first denial")
	require.Len(t, api.deleted, 1, "denied command should be deleted")
	require.Len(t, api.sent, 1)
	assert.Equal(t, "no", api.sent[0].Text)
}

func TestHandlerOutputGoesToLogSink(t *testing.T) {
	api := &mockBotAPI{}
	sink := &mockLogSink{}
	router := NewRouter(api, testLogger(), RouterOptions{
		BotUsername: "SpiralBot",
		LogSink:     sink,
	})
	router.RegisterCommand(&Registration{
		Name: "setflood",
		Handler: func(context.Context, *Ctx) (string, error) {
			return "flood limit changed to 5", nil
		},
	})

	router.HandleUpdate(context.Background(), groupMessage("/setflood 5", 7))
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "flood limit changed to 5", sink.entries[0])
}

func TestWatchersRunInGroupOrder(t *testing.T) {
	api := &mockBotAPI{}
	router := newTestRouter(api)
	var order []string
	router.RegisterWatcher(Watcher{Name: "late", Group: WatcherGroupService, Fn: func(context.Context, *Ctx) error {
		order = append(order, "late")
		return nil
	}})
	router.RegisterWatcher(Watcher{Name: "early", Group: WatcherGroupFlood, Fn: func(context.Context, *Ctx) error {
		order = append(order, "early")
		return nil
	}})

	router.HandleUpdate(context.Background(), groupMessage("just chatting", 7))
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestLateWatchersSkippedForCommands(t *testing.T) {
	api := &mockBotAPI{}
	router := newTestRouter(api)
	var ran []string
	router.RegisterCommand(&Registration{
		Name: "ping",
		Handler: func(context.Context, *Ctx) (string, error) {
			ran = append(ran, "command")
			return "", nil
		},
	})
	router.RegisterWatcher(Watcher{Name: "flood", Group: WatcherGroupFlood, Fn: func(context.Context, *Ctx) error {
		ran = append(ran, "flood")
		return nil
	}})
	router.RegisterWatcher(Watcher{Name: "cleaner", Group: WatcherGroupService, Fn: func(context.Context, *Ctx) error {
		ran = append(ran, "cleaner")
		return nil
	}})

	router.HandleUpdate(context.Background(), groupMessage("/ping", 7))
	assert.Equal(t, []string{"flood", "command"}, ran,
		"watchers past the command group must not see handled commands")
}

func TestAnonymousCommandParkedAndResumed(t *testing.T) {
	api := &mockBotAPI{}
	gate := &mockAnonGate{
		rights: map[int64]privilege.AdminRights{
			50: {UserID: 50, CanRestrict: true},
		},
		staff: map[int64]bool{},
	}
	router := NewRouter(api, testLogger(), RouterOptions{
		BotUsername: "SpiralBot",
		Gate:        gate,
	})
	var gotArgs []string
	router.RegisterCommand(&Registration{
		Name: "ban",
		Req:  privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		Handler: func(_ context.Context, c *Ctx) (string, error) {
			gotArgs = c.Args
			return "", nil
		},
	})

	upd := groupMessage("/ban 12345", 1087968824)
	upd.Message.SenderChat = &models.Chat{ID: upd.Message.Chat.ID}
	router.HandleUpdate(context.Background(), upd)

	require.Len(t, api.sent, 1, "anonymous sender should get a prove-admin prompt")
	assert.Nil(t, gotArgs, "command must not run before the button press")
	promptID := 1

	// A non-admin press leaves the continuation redeemable.
	router.HandleUpdate(context.Background(), &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb1",
			Data: "anoncb",
			From: models.User{ID: 99},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: promptID, Chat: upd.Message.Chat},
			},
		},
	})
	assert.Nil(t, gotArgs)

	router.HandleUpdate(context.Background(), &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb2",
			Data: "anoncb",
			From: models.User{ID: 50},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: promptID, Chat: upd.Message.Chat},
			},
		},
	})
	assert.Equal(t, []string{"12345"}, gotArgs, "admin press should replay the parked command")
}
