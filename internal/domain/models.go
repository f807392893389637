package domain

import (
	"time"
)

const StatusDeleted = "deleted"

type Player struct {
	ID         int64 // row id
	PlayerID   int64 // in-game id
	ServerID   string
	Name       string
	Status     string // "" active, "v" vacation, "b" banned, "i"/"I" inactive, "o" outlaw, "deleted"
	Rank       *int64
	Planets    []byte // blob
	AllianceID *int64 // alliance row id
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Player) Deleted() bool {
	return p.Status == StatusDeleted
}

type Score struct {
	ID                int64
	PlayerID          int64 // player row id
	Timestamp         int64 // unix seconds
	Datetime          time.Time
	Total             []byte
	Economy           []byte
	Research          []byte
	Military          []byte
	MilitaryBuilt     []byte
	MilitaryDestroyed []byte
	MilitaryLost      []byte
	Honor             []byte
}

type Alliance struct {
	ID                        int64
	AllyID                    int64
	Name                      string
	Tag                       string
	FounderID                 *int64 // player row id
	FoundDate                 *time.Time
	Logo                      string
	Homepage                  string
	ApplicationOpen           *bool
	PlanetsDistributionCoords []byte
	PlanetsDistributionGalaxy []byte
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

type CombatReport struct {
	ID          int64
	Title       string
	URL         string
	Date        *time.Time
	Winner      string // "attackers", "defenders", "draw"
	Attackers   []byte
	Defenders   []byte
	AttackerIDs []int64 // player row ids
	DefenderIDs []int64
	CreatedAt   time.Time
}

type FleetRecord struct {
	ID         string // nanoid
	PlayerID   int64  // player row id
	Fleet      []byte
	RecordedBy string
	Coords     string
	CreatedAt  time.Time
}

type ScorePrediction struct {
	PlayerID    int64
	GeneratedAt time.Time
	Prediction  []byte // {dates, predictions}
}
