package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type WelcomeRepository interface {
	GetWelcome(chatID int64) (*WelcomeSettings, error)
	SetShouldWelcome(chatID int64, on bool) error
	SetWelcomeText(chatID int64, text string) error
	SetShouldGoodbye(chatID int64, on bool) error
	SetGoodbyeText(chatID int64, text string) error
	SetMuteMode(chatID int64, mode string) error
	SetCleanWelcome(chatID int64, on bool) error
	SetLastWelcomeID(chatID int64, messageID int) error
	SetCleanService(chatID int64, on bool) error
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresWelcomeRepository struct {
	db *gorm.DB
}

func NewWelcomeRepository(db *gorm.DB) WelcomeRepository {
	return &PostgresWelcomeRepository{db: db}
}

func (r *PostgresWelcomeRepository) GetWelcome(chatID int64) (*WelcomeSettings, error) {
	var settings WelcomeSettings
	err := r.db.First(&settings, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &WelcomeSettings{ChatID: chatID, ShouldWelcome: true, MuteMode: "off"}, nil
		}
		return nil, fmt.Errorf("failed to get welcome settings: %w", err)
	}
	return &settings, nil
}

func (r *PostgresWelcomeRepository) update(chatID int64, apply func(*WelcomeSettings)) error {
	settings := WelcomeSettings{ChatID: chatID, ShouldWelcome: true, MuteMode: "off"}
	if err := r.db.FirstOrCreate(&settings, WelcomeSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init welcome settings: %w", err)
	}
	apply(&settings)
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to update welcome settings: %w", err)
	}
	return nil
}

func (r *PostgresWelcomeRepository) SetShouldWelcome(chatID int64, on bool) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.ShouldWelcome = on })
}

func (r *PostgresWelcomeRepository) SetWelcomeText(chatID int64, text string) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.WelcomeText = text })
}

func (r *PostgresWelcomeRepository) SetShouldGoodbye(chatID int64, on bool) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.ShouldGoodbye = on })
}

func (r *PostgresWelcomeRepository) SetGoodbyeText(chatID int64, text string) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.GoodbyeText = text })
}

func (r *PostgresWelcomeRepository) SetMuteMode(chatID int64, mode string) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.MuteMode = mode })
}

func (r *PostgresWelcomeRepository) SetCleanWelcome(chatID int64, on bool) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.CleanWelcome = on })
}

func (r *PostgresWelcomeRepository) SetLastWelcomeID(chatID int64, messageID int) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.LastWelcomeID = messageID })
}

func (r *PostgresWelcomeRepository) SetCleanService(chatID int64, on bool) error {
	return r.update(chatID, func(s *WelcomeSettings) { s.CleanService = on })
}

func (r *PostgresWelcomeRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&WelcomeSettings{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate welcome settings: %w", err)
	}
	return nil
}
