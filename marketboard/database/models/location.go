package models

import "github.com/uptrace/bun"

// Location is a public world or datacentre a market board can be scoped to.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	Kind string `bun:"kind,pk"`
	Name string `bun:"name,pk"`
	// GameID is the row key in World.csv or WorldDCGroupType.csv.
	GameID int64 `bun:"game_id,notnull"`
	// Datacentre is the owning datacentre's game id; 0 for datacentres.
	Datacentre int64 `bun:"datacentre,notnull"`
}
