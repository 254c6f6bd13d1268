package repository

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GlobalCleanerChatID keys the row holding the global ignore list.
const GlobalCleanerChatID int64 = 0

type CleanerRepository interface {
	GetCleaner(chatID int64) (*CleanerSettings, error)
	SetEnabled(chatID int64, on bool) error
	AddIgnored(chatID int64, command string) (bool, error)
	RemoveIgnored(chatID int64, command string) (bool, error)
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresCleanerRepository struct {
	db *gorm.DB
}

func NewCleanerRepository(db *gorm.DB) CleanerRepository {
	return &PostgresCleanerRepository{db: db}
}

func (r *PostgresCleanerRepository) GetCleaner(chatID int64) (*CleanerSettings, error) {
	var settings CleanerSettings
	err := r.db.First(&settings, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CleanerSettings{ChatID: chatID, Ignored: pq.StringArray{}}, nil
		}
		return nil, fmt.Errorf("failed to get cleaner settings: %w", err)
	}
	return &settings, nil
}

func (r *PostgresCleanerRepository) SetEnabled(chatID int64, on bool) error {
	settings := CleanerSettings{ChatID: chatID, Ignored: pq.StringArray{}}
	if err := r.db.FirstOrCreate(&settings, CleanerSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init cleaner settings: %w", err)
	}
	settings.Enabled = on
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set cleaner enabled: %w", err)
	}
	return nil
}

// AddIgnored reports false when the command was already on the list.
func (r *PostgresCleanerRepository) AddIgnored(chatID int64, command string) (bool, error) {
	settings := CleanerSettings{ChatID: chatID, Ignored: pq.StringArray{}}
	if err := r.db.FirstOrCreate(&settings, CleanerSettings{ChatID: chatID}).Error; err != nil {
		return false, fmt.Errorf("failed to init cleaner settings: %w", err)
	}
	if slices.Contains(settings.Ignored, command) {
		return false, nil
	}
	settings.Ignored = append(settings.Ignored, command)
	if err := r.db.Save(&settings).Error; err != nil {
		return false, fmt.Errorf("failed to add ignored command: %w", err)
	}
	return true, nil
}

// RemoveIgnored reports false when the command was not on the list.
func (r *PostgresCleanerRepository) RemoveIgnored(chatID int64, command string) (bool, error) {
	settings := CleanerSettings{ChatID: chatID, Ignored: pq.StringArray{}}
	if err := r.db.FirstOrCreate(&settings, CleanerSettings{ChatID: chatID}).Error; err != nil {
		return false, fmt.Errorf("failed to init cleaner settings: %w", err)
	}
	idx := slices.Index(settings.Ignored, command)
	if idx < 0 {
		return false, nil
	}
	settings.Ignored = slices.Delete(settings.Ignored, idx, idx+1)
	if err := r.db.Save(&settings).Error; err != nil {
		return false, fmt.Errorf("failed to remove ignored command: %w", err)
	}
	return true, nil
}

func (r *PostgresCleanerRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&CleanerSettings{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate cleaner settings: %w", err)
	}
	return nil
}
