package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingRepository persists in-flight join verifications so that a
// restart does not silently unmute everyone who never passed.
type PendingRepository interface {
	Upsert(p *PendingVerification) error
	Get(chatID, userID int64) (*PendingVerification, error)
	MarkVerified(chatID, userID int64) error
	Delete(chatID, userID int64) error
	ListDue(now time.Time) ([]PendingVerification, error)
	ListPending() ([]PendingVerification, error)
	MigrateChat(oldChatID, newChatID int64) error
}

type PostgresPendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) PendingRepository {
	return &PostgresPendingRepository{db: db}
}

func (r *PostgresPendingRepository) Upsert(p *PendingVerification) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert pending verification: %w", err)
	}
	return nil
}

func (r *PostgresPendingRepository) Get(chatID, userID int64) (*PendingVerification, error) {
	var p PendingVerification
	err := r.db.First(&p, "chat_id = ? AND user_id = ?", chatID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending verification: %w", err)
	}
	return &p, nil
}

func (r *PostgresPendingRepository) MarkVerified(chatID, userID int64) error {
	err := r.db.Model(&PendingVerification{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("status", VerificationVerified).Error
	if err != nil {
		return fmt.Errorf("failed to mark verification passed: %w", err)
	}
	return nil
}

func (r *PostgresPendingRepository) Delete(chatID, userID int64) error {
	err := r.db.Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&PendingVerification{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending verification: %w", err)
	}
	return nil
}

func (r *PostgresPendingRepository) ListDue(now time.Time) ([]PendingVerification, error) {
	var rows []PendingVerification
	err := r.db.Where("status = ? AND deadline <= ?", VerificationPending, now).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due verifications: %w", err)
	}
	return rows, nil
}

func (r *PostgresPendingRepository) ListPending() ([]PendingVerification, error) {
	var rows []PendingVerification
	err := r.db.Where("status = ?", VerificationPending).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending verifications: %w", err)
	}
	return rows, nil
}

func (r *PostgresPendingRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&PendingVerification{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate pending verifications: %w", err)
	}
	return nil
}
