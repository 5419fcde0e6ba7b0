package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry PostgreSQL 中的 KV 行
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     string `gorm:"type:text;not null"`
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// PostgresCache 共享数据库上的 KV 表，多实例共用一个计数
type PostgresCache struct {
	db *gorm.DB
}

// NewPostgresCache 自动迁移 kv_entries 表
func NewPostgresCache(db *gorm.DB) (*PostgresCache, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, err
	}
	return &PostgresCache{db: db}, nil
}

func (c *PostgresCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := KVEntry{Key: key, Value: string(data)}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		entry.ExpiresAt = &exp
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (c *PostgresCache) Get(ctx context.Context, key string, target interface{}) error {
	var entry KVEntry
	err := c.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		return ErrCacheMiss
	}
	return json.Unmarshal([]byte(entry.Value), target)
}

func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	return c.db.WithContext(ctx).Where("key = ?", key).Delete(&KVEntry{}).Error
}

func (c *PostgresCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
