package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidBan = errors.New("ban needs a host")

// Ban blocks a remote host, port stripped, from joining.
type Ban struct {
	Host      string `gorm:"primaryKey"`
	Name      string
	BannedBy  string
	CreatedAt time.Time
}

// MatchResult is written once when a match ends.
type MatchResult struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	WinnerID   int
	WinnerName string
	Victory    string
	Turns      int
	Players    int
	EndedAt    time.Time `gorm:"index"`
}

// Store persists bans and finished matches.
type Store interface {
	IsBanned(ctx context.Context, host string) (bool, error)
	AddBan(ctx context.Context, b Ban) error
	RecordResult(ctx context.Context, r MatchResult) error
	Results(ctx context.Context, limit int) ([]MatchResult, error)
	Close() error
}

func stamp(r *MatchResult) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = time.Now().UTC()
	}
}
