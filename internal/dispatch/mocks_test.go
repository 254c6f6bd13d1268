package dispatch

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
)

type mockBotAPI struct {
	sent    []*bot.SendMessageParams
	deleted []*bot.DeleteMessageParams
	nextID  int
}

func (m *mockBotAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.sent = append(m.sent, params)
	m.nextID++
	return &models.Message{ID: m.nextID}, nil
}

func (m *mockBotAPI) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	m.deleted = append(m.deleted, params)
	return true, nil
}

func (m *mockBotAPI) AnswerCallbackQuery(_ context.Context, _ *bot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

type mockMiddleware struct {
	name    string
	verdict *Verdict
	err     error
	calls   int
}

func (m *mockMiddleware) Name() string { return m.name }

func (m *mockMiddleware) Check(_ context.Context, _ *Ctx, _ *Registration) (*Verdict, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.verdict != nil {
		return m.verdict, nil
	}
	return &Verdict{Allowed: true}, nil
}

type mockAnonGate struct {
	rights  map[int64]privilege.AdminRights
	staff   map[int64]bool
	rankErr error
}

func (m *mockAnonGate) Rights(_ context.Context, _, userID int64) (privilege.AdminRights, bool, error) {
	if m.rankErr != nil {
		return privilege.AdminRights{}, false, m.rankErr
	}
	r, ok := m.rights[userID]
	return r, ok, nil
}

func (m *mockAnonGate) IsStaff(userID int64) bool { return m.staff[userID] }

type mockLogSink struct {
	entries []string
}

func (m *mockLogSink) Log(_ context.Context, _ *models.Chat, _ int, entry string) {
	m.entries = append(m.entries, entry)
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(context.Context, int64) bool { return m.allow }

type mockGate struct {
	allowed bool
	level   privilege.Level
	err     error
}

func (m *mockGate) Allow(context.Context, privilege.Requirement, int64, int64) (bool, error) {
	return m.allowed, m.err
}

func (m *mockGate) Resolve(context.Context, int64, int64) (privilege.Level, error) {
	return m.level, m.err
}

type mockDisabledRepo struct {
	disabled map[string]bool
	err      error
}

func (m *mockDisabledRepo) Disable(_ int64, command string) error {
	if m.disabled == nil {
		m.disabled = make(map[string]bool)
	}
	m.disabled[command] = true
	return m.err
}

func (m *mockDisabledRepo) Enable(_ int64, command string) error {
	delete(m.disabled, command)
	return m.err
}

func (m *mockDisabledRepo) IsDisabled(_ int64, command string) (bool, error) {
	return m.disabled[command], m.err
}

func (m *mockDisabledRepo) ListDisabled(int64) ([]string, error) {
	var names []string
	for name := range m.disabled {
		names = append(names, name)
	}
	return names, m.err
}

func (m *mockDisabledRepo) MigrateChat(int64, int64) error { return m.err }

func groupMessage(text string, senderID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   100,
			Text: text,
			Chat: models.Chat{ID: -1001234, Type: models.ChatTypeSupergroup},
			From: &models.User{ID: senderID, FirstName: "Test"},
		},
	}
}
