package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type RaidRepository interface {
	GetRaid(chatID int64) (*RaidSettings, error)
	SetRaidEnabled(chatID int64, enabled bool) error
	SetRaidDuration(chatID int64, d time.Duration) error
	SetActionDuration(chatID int64, d time.Duration) error
	ListEnabled() ([]RaidSettings, error)
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresRaidRepository struct {
	db *gorm.DB
}

func NewRaidRepository(db *gorm.DB) RaidRepository {
	return &PostgresRaidRepository{db: db}
}

func defaultRaid(chatID int64) RaidSettings {
	return RaidSettings{
		ChatID:             chatID,
		RaidDurationSecs:   int64((6 * time.Hour).Seconds()),
		ActionDurationSecs: int64(time.Hour.Seconds()),
	}
}

func (r *PostgresRaidRepository) GetRaid(chatID int64) (*RaidSettings, error) {
	var settings RaidSettings
	err := r.db.First(&settings, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s := defaultRaid(chatID)
			return &s, nil
		}
		return nil, fmt.Errorf("failed to get raid settings: %w", err)
	}
	return &settings, nil
}

func (r *PostgresRaidRepository) SetRaidEnabled(chatID int64, enabled bool) error {
	settings := defaultRaid(chatID)
	if err := r.db.FirstOrCreate(&settings, RaidSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init raid settings: %w", err)
	}
	settings.Enabled = enabled
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set raid enabled: %w", err)
	}
	return nil
}

func (r *PostgresRaidRepository) SetRaidDuration(chatID int64, d time.Duration) error {
	settings := defaultRaid(chatID)
	if err := r.db.FirstOrCreate(&settings, RaidSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init raid settings: %w", err)
	}
	settings.RaidDurationSecs = int64(d.Seconds())
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set raid duration: %w", err)
	}
	return nil
}

func (r *PostgresRaidRepository) SetActionDuration(chatID int64, d time.Duration) error {
	settings := defaultRaid(chatID)
	if err := r.db.FirstOrCreate(&settings, RaidSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init raid settings: %w", err)
	}
	settings.ActionDurationSecs = int64(d.Seconds())
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set raid action duration: %w", err)
	}
	return nil
}

func (r *PostgresRaidRepository) ListEnabled() ([]RaidSettings, error) {
	var rows []RaidSettings
	if err := r.db.Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled raids: %w", err)
	}
	return rows, nil
}

func (r *PostgresRaidRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&RaidSettings{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate raid settings: %w", err)
	}
	return nil
}
