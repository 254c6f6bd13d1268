package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DisabledRepository interface {
	Disable(chatID int64, command string) error
	Enable(chatID int64, command string) error
	IsDisabled(chatID int64, command string) (bool, error)
	ListDisabled(chatID int64) ([]string, error)
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresDisabledRepository struct {
	db *gorm.DB
}

func NewDisabledRepository(db *gorm.DB) DisabledRepository {
	return &PostgresDisabledRepository{db: db}
}

func (r *PostgresDisabledRepository) Disable(chatID int64, command string) error {
	row := DisabledCommand{ChatID: chatID, Command: command}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to disable command: %w", err)
	}
	return nil
}

func (r *PostgresDisabledRepository) Enable(chatID int64, command string) error {
	err := r.db.Where("chat_id = ? AND command = ?", chatID, command).
		Delete(&DisabledCommand{}).Error
	if err != nil {
		return fmt.Errorf("failed to enable command: %w", err)
	}
	return nil
}

func (r *PostgresDisabledRepository) IsDisabled(chatID int64, command string) (bool, error) {
	var count int64
	err := r.db.Model(&DisabledCommand{}).
		Where("chat_id = ? AND command = ?", chatID, command).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check disabled command: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresDisabledRepository) ListDisabled(chatID int64) ([]string, error) {
	var commands []string
	err := r.db.Model(&DisabledCommand{}).
		Where("chat_id = ?", chatID).
		Order("command").
		Pluck("command", &commands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list disabled commands: %w", err)
	}
	return commands, nil
}

func (r *PostgresDisabledRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&DisabledCommand{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate disabled commands: %w", err)
	}
	return nil
}
