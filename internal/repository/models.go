package repository

import (
	"time"

	"github.com/lib/pq"
)

type FloodSettings struct {
	ChatID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Limit     int    `gorm:"column:msg_limit;default:0"`
	Mode      string `gorm:"size:16;default:'ban'"`
	Value     string `gorm:"size:16;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RaidSettings struct {
	ChatID int64 `gorm:"primaryKey;autoIncrement:false"`
	Enabled bool `gorm:"default:false"`
	// Two independent durations: how long raid mode stays on once toggled,
	// and how long joiners caught by it stay banned. Never positional.
	RaidDurationSecs   int64 `gorm:"default:21600"`
	ActionDurationSecs int64 `gorm:"default:3600"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type WelcomeSettings struct {
	ChatID        int64  `gorm:"primaryKey;autoIncrement:false"`
	ShouldWelcome bool   `gorm:"default:true"`
	WelcomeText   string `gorm:"type:text"`
	ShouldGoodbye bool   `gorm:"default:false"`
	GoodbyeText   string `gorm:"type:text"`
	MuteMode      string `gorm:"size:16;default:'off'"`
	CleanWelcome  bool   `gorm:"default:false"`
	LastWelcomeID int    `gorm:"default:0"`
	CleanService  bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PendingVerification struct {
	ChatID      int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID      int64  `gorm:"primaryKey;autoIncrement:false"`
	Mode        string `gorm:"size:16"`
	Answer      string `gorm:"size:8"`
	WelcomeText string `gorm:"type:text"`
	ChallengeID int
	Status      string    `gorm:"size:16;default:'pending'"`
	Deadline    time.Time `gorm:"index"`
	CreatedAt   time.Time
}

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
)

type UserRank struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Rank      string `gorm:"size:16;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DisabledCommand struct {
	ID      uint   `gorm:"primaryKey"`
	ChatID  int64  `gorm:"index:idx_disabled_chat_cmd,unique"`
	Command string `gorm:"size:64;index:idx_disabled_chat_cmd,unique"`
}

type LogChannel struct {
	ChatID    int64 `gorm:"primaryKey;autoIncrement:false"`
	ChannelID int64 `gorm:"not null"`
	CreatedAt time.Time
}

type Approval struct {
	ID        uint  `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index:idx_approval_chat_user,unique"`
	UserID    int64 `gorm:"index:idx_approval_chat_user,unique"`
	CreatedAt time.Time
}

// CleanerSettings row with ChatID 0 holds the global ignore list.
type CleanerSettings struct {
	ChatID    int64          `gorm:"primaryKey;autoIncrement:false"`
	Enabled   bool           `gorm:"default:false"`
	Ignored   pq.StringArray `gorm:"type:text[]"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
