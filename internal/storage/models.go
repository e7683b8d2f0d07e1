package storage

import (
	"time"

	"github.com/google/uuid"
)

// View records one opening of a match in the viewer.
type View struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID   string    `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
}

// Mutation records a write made through the viewer: an executed action, a
// truncation or a fork.
type Mutation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID   string    `gorm:"index"`
	Kind      string    `gorm:"index"`
	Detail    string
	CreatedAt time.Time
}
