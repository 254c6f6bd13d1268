package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LogChannelRepository interface {
	GetChannel(chatID int64) (int64, error)
	SetChannel(chatID, channelID int64) error
	Unset(chatID int64) error
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresLogChannelRepository struct {
	db *gorm.DB
}

func NewLogChannelRepository(db *gorm.DB) LogChannelRepository {
	return &PostgresLogChannelRepository{db: db}
}

// GetChannel returns 0 when no log channel is registered.
func (r *PostgresLogChannelRepository) GetChannel(chatID int64) (int64, error) {
	var row LogChannel
	err := r.db.First(&row, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get log channel: %w", err)
	}
	return row.ChannelID, nil
}

func (r *PostgresLogChannelRepository) SetChannel(chatID, channelID int64) error {
	row := LogChannel{ChatID: chatID, ChannelID: channelID}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_id"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set log channel: %w", err)
	}
	return nil
}

func (r *PostgresLogChannelRepository) Unset(chatID int64) error {
	if err := r.db.Where("chat_id = ?", chatID).Delete(&LogChannel{}).Error; err != nil {
		return fmt.Errorf("failed to unset log channel: %w", err)
	}
	return nil
}

func (r *PostgresLogChannelRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&LogChannel{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate log channel: %w", err)
	}
	return nil
}
