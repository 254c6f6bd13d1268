package modules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const floodChat int64 = -1001234

func floodCtx(senderID int64) *dispatch.Ctx {
	msg := &models.Message{
		ID:   10,
		Text: "spam",
		Chat: models.Chat{ID: floodChat, Type: models.ChatTypeSupergroup},
		From: &models.User{ID: senderID, FirstName: "Spammer"},
	}
	return &dispatch.Ctx{Msg: msg, Chat: &msg.Chat, Sender: msg.From}
}

// gateForTest builds a Gate whose admin list is empty, so every sender
// resolves to plain member.
func gateForTest(t *testing.T) *privilege.Gate {
	t.Helper()
	lister := adminListerFunc(func() []models.ChatMember { return nil })
	return privilege.NewGate(lister, staticRanks{}, 500, 1, nil, testLogger())
}

type staticRanks struct{}

func (staticRanks) GetRank(int64) (string, error)                    { return "", nil }
func (staticRanks) SetRank(int64, string) error                      { return nil }
func (staticRanks) RemoveRank(int64) error                           { return nil }
func (staticRanks) ListByRank(string) ([]repository.UserRank, error) { return nil, nil }

func TestFloodWatcherBansOverLimit(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockFloodRepo()
	require.NoError(t, repo.SetFloodLimit(floodChat, 4))
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), nil, testLogger())

	for i := 0; i < 4; i++ {
		require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	}
	assert.Empty(t, api.banned)

	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	require.Len(t, api.banned, 1)
	assert.Equal(t, int64(7), api.banned[0].UserID)
	require.Len(t, api.sent, 1, "the action is announced")
}

func TestFloodWatcherApprovedUserResets(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockFloodRepo()
	require.NoError(t, repo.SetFloodLimit(floodChat, 3))
	approvals := &mockApprovalRepo{}
	require.NoError(t, approvals.Approve(floodChat, 8))
	m := NewFloodModule(api, repo, approvals, gateForTest(t), nil, testLogger())

	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	// Approved user interrupts a streak without starting one.
	require.NoError(t, m.watch(context.Background(), floodCtx(8)))

	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	assert.Empty(t, api.banned, "the streak restarted after the approved user spoke")
}

func TestFloodActionFailureDisablesAntiflood(t *testing.T) {
	api := &mockBotAPI{banErr: errors.New("not enough rights")}
	repo := newMockFloodRepo()
	require.NoError(t, repo.SetFloodLimit(floodChat, 3))
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), nil, testLogger())

	for i := 0; i < 4; i++ {
		require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	}

	settings, err := repo.GetFlood(floodChat)
	require.NoError(t, err)
	assert.Zero(t, settings.Limit, "a failed action must disable antiflood")
}

func TestFloodEventsReachLogSink(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockFloodRepo()
	require.NoError(t, repo.SetFloodLimit(floodChat, 3))
	sink := &sinkRecorder{}
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), sink, testLogger())

	for i := 0; i < 4; i++ {
		require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	}

	require.Len(t, sink.entries, 1)
	assert.Contains(t, sink.entries[0], "#FLOOD")
	assert.Contains(t, sink.entries[0], "Crossed the flood limit")
}

func TestFloodAutoDisableReachesLogSink(t *testing.T) {
	api := &mockBotAPI{banErr: errors.New("not enough rights")}
	repo := newMockFloodRepo()
	require.NoError(t, repo.SetFloodLimit(floodChat, 3))
	sink := &sinkRecorder{}
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), sink, testLogger())

	for i := 0; i < 4; i++ {
		require.NoError(t, m.watch(context.Background(), floodCtx(7)))
	}

	require.Len(t, sink.entries, 1)
	assert.Contains(t, sink.entries[0], "Disabled antiflood automatically")
}

func TestFloodSetCommandsAreDisableable(t *testing.T) {
	api := &mockBotAPI{}
	router := dispatch.NewRouter(api, testLogger(), dispatch.RouterOptions{})
	m := NewFloodModule(api, newMockFloodRepo(), &mockApprovalRepo{}, gateForTest(t), nil, testLogger())
	m.Register(router)

	for _, name := range []string{"setflood", "setfloodmode", "flood"} {
		reg, ok := router.Lookup(name)
		require.True(t, ok)
		assert.True(t, reg.Disableable, "%s must honor /disable", name)
	}
}

func TestSetFloodValidation(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockFloodRepo()
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), nil, testLogger())

	c := floodCtx(7)
	c.Command = "setflood"
	c.Args = []string{"2"}
	_, err := m.setFlood(context.Background(), c)
	require.NoError(t, err)
	settings, err := repo.GetFlood(floodChat)
	require.NoError(t, err)
	assert.Zero(t, settings.Limit, "limits of 3 or less are rejected")

	c.Args = []string{"8"}
	entry, err := m.setFlood(context.Background(), c)
	require.NoError(t, err)
	assert.NotEmpty(t, entry, "a successful change is loggable")
	settings, err = repo.GetFlood(floodChat)
	require.NoError(t, err)
	assert.Equal(t, 8, settings.Limit)
}

func TestSetFloodModeTimedNeedsDuration(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockFloodRepo()
	m := NewFloodModule(api, repo, &mockApprovalRepo{}, gateForTest(t), nil, testLogger())

	c := floodCtx(7)
	c.Args = []string{"tban"}
	_, err := m.setFloodMode(context.Background(), c)
	require.NoError(t, err)
	settings, err := repo.GetFlood(floodChat)
	require.NoError(t, err)
	assert.Equal(t, FloodModeBan, settings.Mode, "tban without a duration is rejected")

	c.Args = []string{"tban", "3h"}
	_, err = m.setFloodMode(context.Background(), c)
	require.NoError(t, err)
	settings, err = repo.GetFlood(floodChat)
	require.NoError(t, err)
	assert.Equal(t, FloodModeTBan, settings.Mode)
	assert.Equal(t, "3h", settings.Value)
}
