package modules

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/raid"
)

func raidSetup(t *testing.T) (*mockBotAPI, *mockRaidRepo, *privStub, *RaidModule) {
	t.Helper()
	api := &mockBotAPI{}
	repo := newMockRaidRepo()
	manager := raid.NewManager(repo, nil, testLogger())
	t.Cleanup(manager.Stop)
	priv := &privStub{}
	return api, repo, priv, NewRaidModule(api, manager, repo, priv, testLogger())
}

func raidCtx(args ...string) *dispatch.Ctx {
	msg := &models.Message{
		ID:   30,
		Chat: models.Chat{ID: floodChat, Type: models.ChatTypeSupergroup},
		From: &models.User{ID: 7, FirstName: "Ada"},
	}
	return &dispatch.Ctx{Msg: msg, Chat: &msg.Chat, Sender: msg.From, Command: "raid", Args: args}
}

func TestRaidToggle(t *testing.T) {
	api, repo, _, m := raidSetup(t)

	entry, err := m.raid(context.Background(), raidCtx())
	require.NoError(t, err)
	assert.Contains(t, entry, "Enabled raid mode")
	settings, err := repo.GetRaid(floodChat)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)

	entry, err = m.raid(context.Background(), raidCtx())
	require.NoError(t, err)
	assert.Contains(t, entry, "Disabled raid mode")
	settings, err = repo.GetRaid(floodChat)
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.Len(t, api.sent, 2)
}

func TestRaidEnableWithDuration(t *testing.T) {
	_, repo, _, m := raidSetup(t)

	entry, err := m.raid(context.Background(), raidCtx("2h"))
	require.NoError(t, err)
	assert.NotEmpty(t, entry)
	settings, err := repo.GetRaid(floodChat)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.EqualValues(t, int64((2*time.Hour).Seconds()), settings.RaidDurationSecs)
}

func TestRaidTimeRejectsOutOfBounds(t *testing.T) {
	api, repo, _, m := raidSetup(t)

	for _, arg := range []string{"100s", "24h", "25h"} {
		entry, err := m.raidTime(context.Background(), raidCtx(arg))
		require.NoError(t, err)
		assert.Empty(t, entry, "no log entry for rejected value %q", arg)
	}
	settings, err := repo.GetRaid(floodChat)
	require.NoError(t, err)
	assert.EqualValues(t, int64((6*time.Hour).Seconds()), settings.RaidDurationSecs, "rejected values leave the stored duration alone")
	assert.Len(t, api.sent, 3)
}

func TestRaidActionTimeSet(t *testing.T) {
	_, repo, _, m := raidSetup(t)

	entry, err := m.raidActionTime(context.Background(), raidCtx("30m"))
	require.NoError(t, err)
	assert.Contains(t, entry, "raid action time")
	settings, err := repo.GetRaid(floodChat)
	require.NoError(t, err)
	assert.EqualValues(t, int64((30*time.Minute).Seconds()), settings.ActionDurationSecs)
}

func TestRaidOnJoinBansWhileActive(t *testing.T) {
	api, _, _, m := raidSetup(t)

	removed, err := m.OnJoin(context.Background(), floodChat, 99)
	require.NoError(t, err)
	assert.False(t, removed, "inactive raid mode leaves joiners alone")

	_, err = m.raid(context.Background(), raidCtx())
	require.NoError(t, err)

	removed, err = m.OnJoin(context.Background(), floodChat, 99)
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, api.banned, 1)
	assert.Greater(t, api.banned[0].UntilDate, int(time.Now().Unix()))
}

func TestRaidOnJoinSparesPrivilegedUsers(t *testing.T) {
	api, _, priv, m := raidSetup(t)
	priv.protected = map[int64]bool{55: true}

	_, err := m.raid(context.Background(), raidCtx())
	require.NoError(t, err)

	removed, err := m.OnJoin(context.Background(), floodChat, 55)
	require.NoError(t, err)
	assert.False(t, removed, "staff and whitelisted joiners pass through")
	assert.Empty(t, api.banned)

	removed, err = m.OnJoin(context.Background(), floodChat, 56)
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, api.banned, 1)
	assert.Equal(t, int64(56), api.banned[0].UserID)
}

func TestRaidOnJoinSkipsWhenBotCannotRestrict(t *testing.T) {
	api, _, priv, m := raidSetup(t)
	priv.noRights = true

	_, err := m.raid(context.Background(), raidCtx())
	require.NoError(t, err)

	removed, err := m.OnJoin(context.Background(), floodChat, 99)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, api.banned)
}
