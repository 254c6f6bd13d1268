package privilege

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testChat  int64 = -1001234
	botSelfID int64 = 500
)

func TestResolveTiers(t *testing.T) {
	ranks := &mockRankRepo{ranks: map[int64]string{
		10: repository.RankSudo,
		11: repository.RankSupport,
		12: repository.RankWhitelist,
		13: repository.RankPro,
	}}
	api := &mockAdminLister{admins: map[int64][]models.ChatMember{
		testChat: {creator(20), adminWith(21, true, false)},
	}}
	gate := NewGate(api, ranks, botSelfID, 1, []int64{2}, testLogger())

	tests := []struct {
		name   string
		userID int64
		want   Level
	}{
		{"developer", 2, Developer},
		{"bot owner", 1, Owner},
		{"sudo rank", 10, Sudo},
		{"support rank", 11, Support},
		{"chat creator", 20, ChatAdmin},
		{"chat admin", 21, ChatAdmin},
		{"whitelist rank", 12, Whitelist},
		{"pro rank", 13, Whitelist},
		{"plain member", 99, Member},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := gate.Resolve(context.Background(), testChat, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestAllowChecksAdminRight(t *testing.T) {
	ranks := &mockRankRepo{ranks: map[int64]string{10: repository.RankSudo}}
	api := &mockAdminLister{admins: map[int64][]models.ChatMember{
		testChat: {creator(20), adminWith(21, true, false), adminWith(22, false, true)},
	}}
	gate := NewGate(api, ranks, botSelfID, 1, nil, testLogger())
	req := Requirement{Level: ChatAdmin, Perm: PermRestrict}

	ok, err := gate.Allow(context.Background(), req, testChat, 21)
	require.NoError(t, err)
	assert.True(t, ok, "admin holding the right should pass")

	ok, err = gate.Allow(context.Background(), req, testChat, 22)
	require.NoError(t, err)
	assert.False(t, ok, "admin lacking the right should be denied")

	ok, err = gate.Allow(context.Background(), req, testChat, 20)
	require.NoError(t, err)
	assert.True(t, ok, "creator holds every right")

	ok, err = gate.Allow(context.Background(), req, testChat, 10)
	require.NoError(t, err)
	assert.True(t, ok, "sudo bypasses the per-right check")

	ok, err = gate.Allow(context.Background(), req, testChat, 99)
	require.NoError(t, err)
	assert.False(t, ok, "plain member is denied")
}

func TestChatAdminsCached(t *testing.T) {
	api := &mockAdminLister{admins: map[int64][]models.ChatMember{
		testChat: {creator(20)},
	}}
	gate := NewGate(api, &mockRankRepo{}, botSelfID, 1, nil, testLogger())

	_, err := gate.ChatAdmins(context.Background(), testChat)
	require.NoError(t, err)
	_, err = gate.ChatAdmins(context.Background(), testChat)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls, "second lookup should hit the cache")

	gate.InvalidateAdmins(testChat)
	_, err = gate.ChatAdmins(context.Background(), testChat)
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls, "invalidation should force a refetch")
}

func TestBanProtected(t *testing.T) {
	ranks := &mockRankRepo{ranks: map[int64]string{12: repository.RankWhitelist}}
	api := &mockAdminLister{admins: map[int64][]models.ChatMember{
		testChat: {creator(20), adminWith(21, true, false)},
	}}
	gate := NewGate(api, ranks, botSelfID, 1, nil, testLogger())

	for _, userID := range []int64{1, 12, 20, 21} {
		protected, err := gate.BanProtected(context.Background(), testChat, userID)
		require.NoError(t, err)
		assert.True(t, protected, "user %d must be spared by automatic removals", userID)
	}

	protected, err := gate.BanProtected(context.Background(), testChat, 99)
	require.NoError(t, err)
	assert.False(t, protected, "plain members carry no protection")
}

func TestBotCanReadsOwnRights(t *testing.T) {
	api := &mockAdminLister{admins: map[int64][]models.ChatMember{
		testChat: {adminWith(botSelfID, true, false)},
	}}
	gate := NewGate(api, &mockRankRepo{}, botSelfID, 1, nil, testLogger())

	can, err := gate.BotCan(context.Background(), testChat, PermRestrict)
	require.NoError(t, err)
	assert.True(t, can)

	can, err = gate.BotCan(context.Background(), testChat, PermDelete)
	require.NoError(t, err)
	assert.False(t, can, "the bot was not granted the delete right")

	demoted := &mockAdminLister{admins: map[int64][]models.ChatMember{testChat: {creator(20)}}}
	gate = NewGate(demoted, &mockRankRepo{}, botSelfID, 1, nil, testLogger())
	can, err = gate.BotCan(context.Background(), testChat, PermRestrict)
	require.NoError(t, err)
	assert.False(t, can, "a bot missing from the admin list holds nothing")
}

func TestContinuationsSingleUse(t *testing.T) {
	c := NewContinuations(time.Minute)
	c.Park(testChat, 55, ResumeIntent{Command: "ban", Args: []string{"5"}, Perm: PermRestrict})

	intent, ok := c.Take(testChat, 55)
	require.True(t, ok)
	assert.Equal(t, "ban", intent.Command)

	_, ok = c.Take(testChat, 55)
	assert.False(t, ok, "a parked command can only be redeemed once")
}
