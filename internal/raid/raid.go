// Package raid drives per-chat raid mode: while active, every joining
// member is temp banned, and the mode shuts itself off on a timer.
package raid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

const (
	MinDuration = 5 * time.Minute
	MaxDuration = 24 * time.Hour
)

// ErrOutOfBounds rejects durations outside [MinDuration, MaxDuration).
var ErrOutOfBounds = errors.New("raid duration out of bounds")

func ValidateDuration(d time.Duration) error {
	if d < MinDuration || d >= MaxDuration {
		return ErrOutOfBounds
	}
	return nil
}

// Manager owns the auto-off timers. At most one timer exists per chat;
// re-enabling replaces the previous one.
type Manager struct {
	repo   repository.RaidRepository
	logger *slog.Logger
	// notify announces an automatic shutoff in the chat.
	notify func(ctx context.Context, chatID int64)

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func NewManager(repo repository.RaidRepository, notify func(ctx context.Context, chatID int64), logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger,
		notify: notify,
		timers: make(map[int64]*time.Timer),
	}
}

// Enable turns raid mode on and arms the auto-off timer. It returns
// how long the mode will stay active.
func (m *Manager) Enable(ctx context.Context, chatID int64) (time.Duration, error) {
	settings, err := m.repo.GetRaid(chatID)
	if err != nil {
		return 0, err
	}
	if err := m.repo.SetRaidEnabled(chatID, true); err != nil {
		return 0, err
	}
	d := time.Duration(settings.RaidDurationSecs) * time.Second
	m.arm(chatID, d)
	metrics.SetActiveRaids(float64(m.activeTimers()))
	return d, nil
}

// Disable turns raid mode off and cancels any pending timer.
func (m *Manager) Disable(ctx context.Context, chatID int64) error {
	if err := m.repo.SetRaidEnabled(chatID, false); err != nil {
		return err
	}
	m.cancel(chatID)
	metrics.SetActiveRaids(float64(m.activeTimers()))
	return nil
}

// IsActive reads the persisted flag, not the timer map, so it stays
// correct across restarts.
func (m *Manager) IsActive(chatID int64) (bool, error) {
	settings, err := m.repo.GetRaid(chatID)
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}

// ActionDuration is the temp-ban length applied to joiners.
func (m *Manager) ActionDuration(chatID int64) (time.Duration, error) {
	settings, err := m.repo.GetRaid(chatID)
	if err != nil {
		return 0, err
	}
	return time.Duration(settings.ActionDurationSecs) * time.Second, nil
}

// Resume re-arms timers for chats whose raid mode survived a restart.
// Remaining time is unknown at that point, so the full duration is
// used again.
func (m *Manager) Resume(ctx context.Context) error {
	rows, err := m.repo.ListEnabled()
	if err != nil {
		return fmt.Errorf("failed to resume raid timers: %w", err)
	}
	for _, row := range rows {
		m.arm(row.ChatID, time.Duration(row.RaidDurationSecs)*time.Second)
	}
	metrics.SetActiveRaids(float64(m.activeTimers()))
	if len(rows) > 0 {
		m.logger.Info("resumed raid timers", "count", len(rows))
	}
	return nil
}

func (m *Manager) arm(chatID int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[chatID]; ok {
		t.Stop()
	}
	m.timers[chatID] = time.AfterFunc(d, func() {
		m.expire(chatID)
	})
}

func (m *Manager) cancel(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[chatID]; ok {
		t.Stop()
		delete(m.timers, chatID)
	}
}

// Stop cancels every armed timer. Persisted state is untouched, so a
// later Resume re-arms them.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) activeTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// expire fires on the timer goroutine. The persisted flag is
// re-checked so a manual disable raced with the timer stays a no-op.
func (m *Manager) expire(chatID int64) {
	m.mu.Lock()
	delete(m.timers, chatID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	settings, err := m.repo.GetRaid(chatID)
	if err != nil {
		m.logger.Error("failed to read raid settings on expiry", "chat_id", chatID, "error", err)
		return
	}
	if !settings.Enabled {
		return
	}
	if err := m.repo.SetRaidEnabled(chatID, false); err != nil {
		m.logger.Error("failed to auto-disable raid mode", "chat_id", chatID, "error", err)
		return
	}
	metrics.SetActiveRaids(float64(m.activeTimers()))
	if m.notify != nil {
		m.notify(ctx, chatID)
	}
}
