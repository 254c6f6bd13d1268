package modules

import (
	"context"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

func cleanerSetup(t *testing.T) (*mockBotAPI, *mockCleanerRepo, *CleanerModule, *dispatch.Router) {
	t.Helper()
	api := &mockBotAPI{}
	repo := newMockCleanerRepo()
	m := NewCleanerModule(api, repo, &privStub{}, testLogger())
	router := dispatch.NewRouter(api, testLogger(), dispatch.RouterOptions{BotUsername: "SpiralBot"})
	router.RegisterCommand(&dispatch.Registration{
		Name: "flood",
		Handler: func(context.Context, *dispatch.Ctx) (string, error) { return "", nil },
	})
	m.Register(router)
	return api, repo, m, router
}

func textCtx(text string) *dispatch.Ctx {
	msg := &models.Message{
		ID:   20,
		Text: text,
		Chat: models.Chat{ID: floodChat, Type: models.ChatTypeSupergroup},
		From: &models.User{ID: 7},
	}
	return &dispatch.Ctx{Msg: msg, Chat: &msg.Chat, Sender: msg.From}
}

func TestCleanerDeletesUnhandledSlashMessage(t *testing.T) {
	api, repo, m, _ := cleanerSetup(t)
	require.NoError(t, repo.SetEnabled(floodChat, true))

	require.NoError(t, m.watch(context.Background(), textCtx("/notacommand hello")))
	assert.Len(t, api.deleted, 1)
}

func TestCleanerSparesRegisteredCommands(t *testing.T) {
	api, repo, m, _ := cleanerSetup(t)
	require.NoError(t, repo.SetEnabled(floodChat, true))

	require.NoError(t, m.watch(context.Background(), textCtx("/flood@SomeOtherBot")))
	assert.Empty(t, api.deleted, "tokens we handle are never blue text")
}

func TestCleanerSkipsWhenBotCannotDelete(t *testing.T) {
	api := &mockBotAPI{}
	repo := newMockCleanerRepo()
	m := NewCleanerModule(api, repo, &privStub{noRights: true}, testLogger())
	router := dispatch.NewRouter(api, testLogger(), dispatch.RouterOptions{BotUsername: "SpiralBot"})
	m.Register(router)
	require.NoError(t, repo.SetEnabled(floodChat, true))

	require.NoError(t, m.watch(context.Background(), textCtx("/notacommand")))
	assert.Empty(t, api.deleted, "without the delete right nothing is removed")
}

func TestCleanerDisabledByDefault(t *testing.T) {
	api, _, m, _ := cleanerSetup(t)
	require.NoError(t, m.watch(context.Background(), textCtx("/notacommand")))
	assert.Empty(t, api.deleted)
}

func TestCleanerHonorsIgnoreLists(t *testing.T) {
	api, repo, m, _ := cleanerSetup(t)
	require.NoError(t, repo.SetEnabled(floodChat, true))

	added, err := repo.AddIgnored(floodChat, "roll")
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, m.watch(context.Background(), textCtx("/roll")))
	assert.Empty(t, api.deleted, "chat ignore list spares the token")

	_, err = repo.AddIgnored(repository.GlobalCleanerChatID, "slap")
	require.NoError(t, err)
	require.NoError(t, m.watch(context.Background(), textCtx("/slap")))
	assert.Empty(t, api.deleted, "global ignore list spares the token")

	require.NoError(t, m.watch(context.Background(), textCtx("/other")))
	assert.Len(t, api.deleted, 1)
}

func TestCleanerIgnoresExclamationPrefix(t *testing.T) {
	api, repo, m, _ := cleanerSetup(t)
	require.NoError(t, repo.SetEnabled(floodChat, true))
	require.NoError(t, m.watch(context.Background(), textCtx("!notacommand")))
	assert.Empty(t, api.deleted, "only / renders as blue text")
}

func TestWelcomeTemplateFill(t *testing.T) {
	chat := &models.Chat{ID: -100, Title: "Spiral"}
	user := &models.User{ID: 5, FirstName: "Ada", LastName: "L", Username: "ada"}

	out := fillTemplate("Hi {first} {last} ({fullname}, {username}, {id}) welcome to {chatname}", chat, user)
	assert.Equal(t, "Hi Ada L (Ada L, @ada, 5) welcome to Spiral", out)

	out = fillTemplate("{mention}", chat, &models.User{ID: 5, FirstName: "Ada"})
	assert.Contains(t, out, `tg://user?id=5`)
}

func TestRanksPromoteDemote(t *testing.T) {
	api := &mockBotAPI{}
	ranks := &memRankRepo{ranks: map[int64]string{}}
	m := NewRanksModule(api, ranks)

	c := textCtx("/addsudo 55")
	c.Args = []string{"55"}
	entry, err := m.promote(context.Background(), c, repository.RankSudo)
	require.NoError(t, err)
	assert.NotEmpty(t, entry)
	assert.Equal(t, repository.RankSudo, ranks.ranks[55])

	// Promoting again with the same rank is refused.
	entry, err = m.promote(context.Background(), c, repository.RankSudo)
	require.NoError(t, err)
	assert.Empty(t, entry)

	entry, err = m.demote(context.Background(), c)
	require.NoError(t, err)
	assert.NotEmpty(t, entry)
	_, held := ranks.ranks[55]
	assert.False(t, held)
}

type memRankRepo struct {
	ranks map[int64]string
}

func (m *memRankRepo) GetRank(userID int64) (string, error) { return m.ranks[userID], nil }
func (m *memRankRepo) SetRank(userID int64, rank string) error {
	m.ranks[userID] = rank
	return nil
}
func (m *memRankRepo) RemoveRank(userID int64) error {
	delete(m.ranks, userID)
	return nil
}
func (m *memRankRepo) ListByRank(rank string) ([]repository.UserRank, error) {
	var rows []repository.UserRank
	for id, r := range m.ranks {
		if r == rank {
			rows = append(rows, repository.UserRank{UserID: id, Rank: r})
		}
	}
	return rows, nil
}
