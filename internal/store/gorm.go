package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Gorm keeps bans and results in Postgres.
type Gorm struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open connection and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&Ban{}, &MatchResult{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) IsBanned(ctx context.Context, host string) (bool, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&Ban{}).Where("host = ?", host).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *Gorm) AddBan(ctx context.Context, b Ban) error {
	if b.Host == "" {
		return ErrInvalidBan
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&b).Error
}

func (g *Gorm) RecordResult(ctx context.Context, r MatchResult) error {
	stamp(&r)
	return g.db.WithContext(ctx).Create(&r).Error
}

func (g *Gorm) Results(ctx context.Context, limit int) ([]MatchResult, error) {
	var out []MatchResult
	q := g.db.WithContext(ctx).Order("ended_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
