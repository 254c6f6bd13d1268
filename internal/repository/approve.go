package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalRepository interface {
	Approve(chatID, userID int64) error
	Unapprove(chatID, userID int64) error
	IsApproved(chatID, userID int64) (bool, error)
	ListApproved(chatID int64) ([]int64, error)
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &PostgresApprovalRepository{db: db}
}

func (r *PostgresApprovalRepository) Approve(chatID, userID int64) error {
	row := Approval{ChatID: chatID, UserID: userID}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to approve user: %w", err)
	}
	return nil
}

func (r *PostgresApprovalRepository) Unapprove(chatID, userID int64) error {
	err := r.db.Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&Approval{}).Error
	if err != nil {
		return fmt.Errorf("failed to unapprove user: %w", err)
	}
	return nil
}

func (r *PostgresApprovalRepository) IsApproved(chatID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&Approval{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check approval: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresApprovalRepository) ListApproved(chatID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&Approval{}).
		Where("chat_id = ?", chatID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approved users: %w", err)
	}
	return ids, nil
}

func (r *PostgresApprovalRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&Approval{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate approvals: %w", err)
	}
	return nil
}
