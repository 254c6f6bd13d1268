package modules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

// privStub answers privilege questions with canned values. The zero
// value is a fully-capable bot in a chat with no protected users.
type privStub struct {
	protected map[int64]bool
	noRights  bool
}

func (p *privStub) BanProtected(_ context.Context, _, userID int64) (bool, error) {
	return p.protected[userID], nil
}

func (p *privStub) BotCan(context.Context, int64, privilege.AdminPerm) (bool, error) {
	return !p.noRights, nil
}

type sinkRecorder struct {
	entries []string
}

func (s *sinkRecorder) Log(_ context.Context, _ *models.Chat, _ int, entry string) {
	s.entries = append(s.entries, entry)
}

type mockBotAPI struct {
	mu          sync.Mutex
	sent        []*bot.SendMessageParams
	deleted     []*bot.DeleteMessageParams
	restricted  []*bot.RestrictChatMemberParams
	banned      []*bot.BanChatMemberParams
	unbanned    []*bot.UnbanChatMemberParams
	restrictErr error
	banErr      error
	nextID      int
}

func (m *mockBotAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	m.nextID++
	return &models.Message{ID: m.nextID}, nil
}

func (m *mockBotAPI) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.Message{ID: p.MessageID}, nil
}

func (m *mockBotAPI) SendPhoto(_ context.Context, _ *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return &models.Message{ID: m.nextID}, nil
}

func (m *mockBotAPI) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, p)
	return true, nil
}

func (m *mockBotAPI) RestrictChatMember(_ context.Context, p *bot.RestrictChatMemberParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restrictErr != nil {
		return false, m.restrictErr
	}
	m.restricted = append(m.restricted, p)
	return true, nil
}

func (m *mockBotAPI) BanChatMember(_ context.Context, p *bot.BanChatMemberParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.banErr != nil {
		return false, m.banErr
	}
	m.banned = append(m.banned, p)
	return true, nil
}

func (m *mockBotAPI) UnbanChatMember(_ context.Context, p *bot.UnbanChatMemberParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbanned = append(m.unbanned, p)
	return true, nil
}

func (m *mockBotAPI) AnswerCallbackQuery(_ context.Context, _ *bot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

type mockFloodRepo struct {
	settings map[int64]*repository.FloodSettings
}

func newMockFloodRepo() *mockFloodRepo {
	return &mockFloodRepo{settings: make(map[int64]*repository.FloodSettings)}
}

func (m *mockFloodRepo) GetFlood(chatID int64) (*repository.FloodSettings, error) {
	if s, ok := m.settings[chatID]; ok {
		cp := *s
		return &cp, nil
	}
	return &repository.FloodSettings{ChatID: chatID, Mode: FloodModeBan}, nil
}

func (m *mockFloodRepo) SetFloodLimit(chatID int64, limit int) error {
	s, _ := m.GetFlood(chatID)
	s.Limit = limit
	m.settings[chatID] = s
	return nil
}

func (m *mockFloodRepo) SetFloodMode(chatID int64, mode, value string) error {
	s, _ := m.GetFlood(chatID)
	s.Mode = mode
	s.Value = value
	m.settings[chatID] = s
	return nil
}

func (m *mockFloodRepo) MigrateChat(oldChatID, newChatID int64) error {
	if s, ok := m.settings[oldChatID]; ok {
		s.ChatID = newChatID
		m.settings[newChatID] = s
		delete(m.settings, oldChatID)
	}
	return nil
}

type mockApprovalRepo struct {
	approved map[string]bool
}

func approvalKey(chatID, userID int64) string {
	return fmt.Sprintf("%d/%d", chatID, userID)
}

func (m *mockApprovalRepo) Approve(chatID, userID int64) error {
	if m.approved == nil {
		m.approved = make(map[string]bool)
	}
	m.approved[approvalKey(chatID, userID)] = true
	return nil
}

func (m *mockApprovalRepo) Unapprove(chatID, userID int64) error {
	delete(m.approved, approvalKey(chatID, userID))
	return nil
}

func (m *mockApprovalRepo) IsApproved(chatID, userID int64) (bool, error) {
	return m.approved[approvalKey(chatID, userID)], nil
}

func (m *mockApprovalRepo) ListApproved(int64) ([]int64, error) { return nil, nil }

func (m *mockApprovalRepo) MigrateChat(int64, int64) error { return nil }

type mockCleanerRepo struct {
	rows map[int64]*repository.CleanerSettings
}

func newMockCleanerRepo() *mockCleanerRepo {
	return &mockCleanerRepo{rows: make(map[int64]*repository.CleanerSettings)}
}

func (m *mockCleanerRepo) GetCleaner(chatID int64) (*repository.CleanerSettings, error) {
	if s, ok := m.rows[chatID]; ok {
		cp := *s
		return &cp, nil
	}
	return &repository.CleanerSettings{ChatID: chatID}, nil
}

func (m *mockCleanerRepo) SetEnabled(chatID int64, on bool) error {
	s, _ := m.GetCleaner(chatID)
	s.Enabled = on
	m.rows[chatID] = s
	return nil
}

func (m *mockCleanerRepo) AddIgnored(chatID int64, command string) (bool, error) {
	s, _ := m.GetCleaner(chatID)
	for _, c := range s.Ignored {
		if c == command {
			return false, nil
		}
	}
	s.Ignored = append(s.Ignored, command)
	m.rows[chatID] = s
	return true, nil
}

func (m *mockCleanerRepo) RemoveIgnored(chatID int64, command string) (bool, error) {
	s, _ := m.GetCleaner(chatID)
	for i, c := range s.Ignored {
		if c == command {
			s.Ignored = append(s.Ignored[:i], s.Ignored[i+1:]...)
			m.rows[chatID] = s
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCleanerRepo) MigrateChat(int64, int64) error { return nil }

type mockRaidRepo struct {
	rows map[int64]*repository.RaidSettings
}

func newMockRaidRepo() *mockRaidRepo {
	return &mockRaidRepo{rows: make(map[int64]*repository.RaidSettings)}
}

func (m *mockRaidRepo) row(chatID int64) *repository.RaidSettings {
	if r, ok := m.rows[chatID]; ok {
		return r
	}
	r := &repository.RaidSettings{
		ChatID:             chatID,
		RaidDurationSecs:   int64((6 * time.Hour).Seconds()),
		ActionDurationSecs: int64(time.Hour.Seconds()),
	}
	m.rows[chatID] = r
	return r
}

func (m *mockRaidRepo) GetRaid(chatID int64) (*repository.RaidSettings, error) {
	cp := *m.row(chatID)
	return &cp, nil
}

func (m *mockRaidRepo) SetRaidEnabled(chatID int64, enabled bool) error {
	m.row(chatID).Enabled = enabled
	return nil
}

func (m *mockRaidRepo) SetRaidDuration(chatID int64, d time.Duration) error {
	m.row(chatID).RaidDurationSecs = int64(d.Seconds())
	return nil
}

func (m *mockRaidRepo) SetActionDuration(chatID int64, d time.Duration) error {
	m.row(chatID).ActionDurationSecs = int64(d.Seconds())
	return nil
}

func (m *mockRaidRepo) ListEnabled() ([]repository.RaidSettings, error) {
	var out []repository.RaidSettings
	for _, r := range m.rows {
		if r.Enabled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRaidRepo) MigrateChat(int64, int64) error { return nil }

type adminListerFunc func() []models.ChatMember

func (f adminListerFunc) GetChatAdministrators(_ context.Context, _ *bot.GetChatAdministratorsParams) ([]models.ChatMember, error) {
	return f(), nil
}
