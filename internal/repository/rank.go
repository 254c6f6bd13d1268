package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RankSudo      = "sudo"
	RankSupport   = "support"
	RankWhitelist = "whitelist"
	RankPro       = "pro"
)

// RankRepository stores global (not per-chat) privilege ranks.
type RankRepository interface {
	GetRank(userID int64) (string, error)
	SetRank(userID int64, rank string) error
	RemoveRank(userID int64) error
	ListByRank(rank string) ([]UserRank, error)
}

type PostgresRankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) RankRepository {
	return &PostgresRankRepository{db: db}
}

func (r *PostgresRankRepository) GetRank(userID int64) (string, error) {
	var row UserRank
	err := r.db.First(&row, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get rank: %w", err)
	}
	return row.Rank, nil
}

func (r *PostgresRankRepository) SetRank(userID int64, rank string) error {
	row := UserRank{UserID: userID, Rank: rank}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rank", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set rank: %w", err)
	}
	return nil
}

func (r *PostgresRankRepository) RemoveRank(userID int64) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&UserRank{}).Error; err != nil {
		return fmt.Errorf("failed to remove rank: %w", err)
	}
	return nil
}

func (r *PostgresRankRepository) ListByRank(rank string) ([]UserRank, error) {
	var rows []UserRank
	if err := r.db.Where("rank = ?", rank).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ranks: %w", err)
	}
	return rows, nil
}
