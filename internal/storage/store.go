package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store wraps a gorm DB instance and records viewing activity. A nil *Store
// is valid and records nothing.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store helper from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// RecordView inserts a view row for the match.
func (s *Store) RecordView(ctx context.Context, matchID string) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(&View{ID: uuid.New(), MatchID: matchID}).Error
}

// RecordMutation inserts an audit row for a write to the match.
func (s *Store) RecordMutation(ctx context.Context, matchID, kind, detail string) error {
	if s == nil {
		return nil
	}
	m := Mutation{
		ID:      uuid.New(),
		MatchID: matchID,
		Kind:    kind,
		Detail:  detail,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// RecentView is one match on the recently viewed list.
type RecentView struct {
	MatchID    string    `json:"matchId"`
	Views      int64     `json:"views"`
	LastViewed time.Time `json:"lastViewed"`
}

// RecentViews lists the most recently viewed matches, newest first.
func (s *Store) RecentViews(ctx context.Context, limit int) ([]RecentView, error) {
	if s == nil {
		return nil, nil
	}
	var out []RecentView
	q := s.db.WithContext(ctx).
		Model(&View{}).
		Select("match_id, count(*) AS views, max(created_at) AS last_viewed").
		Group("match_id").
		Order("last_viewed DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MatchMutations lists the audit rows of one match, oldest first.
func (s *Store) MatchMutations(ctx context.Context, matchID string) ([]Mutation, error) {
	if s == nil {
		return nil, nil
	}
	var out []Mutation
	err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at").
		Find(&out).Error
	return out, err
}

// Stats represents aggregate counts for display on the home page.
type Stats struct {
	Views     int64 `json:"views"`
	Matches   int64 `json:"matches"`
	Mutations int64 `json:"mutations"`
}

// FetchStats aggregates counts for display on the home page.
func (s *Store) FetchStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&View{}).Count(&stats.Views).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&View{}).Distinct("match_id").Count(&stats.Matches).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Mutation{}).Count(&stats.Mutations).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
