package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	MarketboardWorld      = "World"
	MarketboardDatacentre = "Datacentre"
)

// Scope identifies the market an ingestion run targets.
type Scope struct {
	Type     string
	Location string
}

func (s Scope) String() string {
	return s.Type + "/" + s.Location
}

// State is the persisted ingestion checkpoint of one scope.
type State struct {
	bun.BaseModel `bun:"table:state,alias:s"`

	MarketboardType string `bun:"marketboard_type,pk"`
	Location        string `bun:"location,pk"`

	// LastID is where the next run resumes after the last successful item.
	LastID int64 `bun:"last_id,notnull"`
	// LastAttemptedID is the last item the controller tried, successful or not.
	LastAttemptedID int64 `bun:"last_attempted_id,notnull"`

	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

func (s *State) Scope() Scope {
	return Scope{Type: s.MarketboardType, Location: s.Location}
}

// ResumeFrom returns the item id the next run should start at. When the last
// attempt failed after the last success, the run moves past the failing item
// so it cannot stall progress; it is retried on the next full cycle.
func (s *State) ResumeFrom(maxID int64) int64 {
	if s.LastAttemptedID <= s.LastID {
		return s.LastID
	}
	next := s.LastAttemptedID + 1
	if next > maxID {
		return 0
	}
	return next
}
