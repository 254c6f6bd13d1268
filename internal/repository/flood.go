package repository

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// FloodRepository stores per-chat flood thresholds. Settings are read on
// every group message, so the default implementation caches reads.
type FloodRepository interface {
	GetFlood(chatID int64) (*FloodSettings, error)
	SetFloodLimit(chatID int64, limit int) error
	SetFloodMode(chatID int64, mode, value string) error
	MigrateChat(oldChatID, newChatID int64) error
}

type CachedFloodRepository struct {
	db          *gorm.DB
	cache       sync.Map
	enableCache bool
}

type cachedFlood struct {
	settings  *FloodSettings
	expiresAt time.Time
}

const floodCacheTTL = 5 * time.Minute

func NewFloodRepository(db *gorm.DB, enableCache bool) FloodRepository {
	return &CachedFloodRepository{
		db:          db,
		enableCache: enableCache,
	}
}

func (r *CachedFloodRepository) GetFlood(chatID int64) (*FloodSettings, error) {
	if r.enableCache {
		if val, ok := r.cache.Load(chatID); ok {
			entry := val.(*cachedFlood)
			if time.Now().Before(entry.expiresAt) {
				return entry.settings, nil
			}
			r.cache.Delete(chatID)
		}
	}
	var settings FloodSettings
	err := r.db.First(&settings, "chat_id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Limit 0 means flood control is off for the chat.
			return &FloodSettings{ChatID: chatID, Mode: "ban"}, nil
		}
		return nil, fmt.Errorf("failed to get flood settings: %w", err)
	}
	if r.enableCache {
		r.cache.Store(chatID, &cachedFlood{
			settings:  &settings,
			expiresAt: time.Now().Add(floodCacheTTL),
		})
	}
	return &settings, nil
}

func (r *CachedFloodRepository) SetFloodLimit(chatID int64, limit int) error {
	settings := FloodSettings{ChatID: chatID, Mode: "ban"}
	if err := r.db.FirstOrCreate(&settings, FloodSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init flood settings: %w", err)
	}
	settings.Limit = limit
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set flood limit: %w", err)
	}
	r.storeCache(&settings)
	return nil
}

func (r *CachedFloodRepository) SetFloodMode(chatID int64, mode, value string) error {
	settings := FloodSettings{ChatID: chatID, Mode: "ban"}
	if err := r.db.FirstOrCreate(&settings, FloodSettings{ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to init flood settings: %w", err)
	}
	settings.Mode = mode
	settings.Value = value
	if err := r.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("failed to set flood mode: %w", err)
	}
	r.storeCache(&settings)
	return nil
}

func (r *CachedFloodRepository) MigrateChat(oldChatID, newChatID int64) error {
	err := r.db.Model(&FloodSettings{}).
		Where("chat_id = ?", oldChatID).
		Update("chat_id", newChatID).Error
	if err != nil {
		return fmt.Errorf("failed to migrate flood settings: %w", err)
	}
	r.cache.Delete(oldChatID)
	r.cache.Delete(newChatID)
	return nil
}

func (r *CachedFloodRepository) storeCache(settings *FloodSettings) {
	if !r.enableCache {
		return
	}
	r.cache.Store(settings.ChatID, &cachedFlood{
		settings:  settings,
		expiresAt: time.Now().Add(floodCacheTTL),
	})
}
