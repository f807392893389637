package domain

import "time"

// RosterEntry is one row of the universe player listing.
type RosterEntry struct {
	ID         int64
	Name       string
	Status     string
	AllianceID int64 // 0 when unaffiliated
}

// RankingRow is one highscore table row.
type RankingRow struct {
	ID       int64
	Position int64
	Score    float64
	Ships    *int64 // military table only
}

type Planet struct {
	ID     int64  `cbor:"id" json:"id"`
	Name   string `cbor:"name" json:"name"`
	Coords string `cbor:"coords" json:"coords"`
	Moon   *Moon  `cbor:"moon,omitempty" json:"moon,omitempty"`
}

type Moon struct {
	ID   int64  `cbor:"id" json:"id"`
	Name string `cbor:"name" json:"name"`
	Size int64  `cbor:"size" json:"size"`
}

type AllianceRef struct {
	ID   int64
	Name string
	Tag  string
}

// PlayerDetail is the per-entity payload fetched once per pass.
type PlayerDetail struct {
	ID       int64
	ServerID string
	Name     string
	Planets  []Planet
	Alliance *AllianceRef
}

// AllianceListing is one row of the universe alliance listing.
type AllianceListing struct {
	ID              int64
	Name            string
	Tag             string
	FounderID       int64
	FoundDate       *time.Time
	Logo            string
	Homepage        string
	ApplicationOpen *bool
	MemberIDs       []int64
}

// PlanetDistribution lists an alliance's planet coordinates and the count per galaxy.
type PlanetDistribution struct {
	Coords   []string
	ByGalaxy map[string]int64
}

// ClassifiedReport is a combat report as produced by the upstream classifier.
type ClassifiedReport struct {
	Title     string                 `json:"title"`
	URL       string                 `json:"url"`
	Date      *time.Time             `json:"date"`
	Winner    string                 `json:"winner"`
	Attackers map[string]Participant `json:"attackers"`
	Defenders map[string]Participant `json:"defenders"`
}
