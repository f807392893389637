package domain

import "fmt"

type Category string

const (
	CategoryTotal             Category = "total"
	CategoryEconomy           Category = "economy"
	CategoryResearch          Category = "research"
	CategoryMilitary          Category = "military"
	CategoryMilitaryBuilt     Category = "military_built"
	CategoryMilitaryDestroyed Category = "military_destroyed"
	CategoryMilitaryLost      Category = "military_lost"
	CategoryHonor             Category = "honor"
)

// Categories in storage column order.
var Categories = []Category{
	CategoryTotal,
	CategoryEconomy,
	CategoryResearch,
	CategoryMilitary,
	CategoryMilitaryBuilt,
	CategoryMilitaryDestroyed,
	CategoryMilitaryLost,
	CategoryHonor,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown score category %q", s)
}

// ScoreEntry is the decoded shape of one category blob.
type ScoreEntry struct {
	Score float64 `cbor:"score" json:"score"`
	Rank  int64   `cbor:"rank" json:"rank"`
	Ships *int64  `cbor:"ships,omitempty" json:"ships,omitempty"`
}

// Blob returns the encoded entry for c, or nil for an unknown category.
func (s *Score) Blob(c Category) []byte {
	switch c {
	case CategoryTotal:
		return s.Total
	case CategoryEconomy:
		return s.Economy
	case CategoryResearch:
		return s.Research
	case CategoryMilitary:
		return s.Military
	case CategoryMilitaryBuilt:
		return s.MilitaryBuilt
	case CategoryMilitaryDestroyed:
		return s.MilitaryDestroyed
	case CategoryMilitaryLost:
		return s.MilitaryLost
	case CategoryHonor:
		return s.Honor
	}
	return nil
}

func (s *Score) SetBlob(c Category, blob []byte) {
	switch c {
	case CategoryTotal:
		s.Total = blob
	case CategoryEconomy:
		s.Economy = blob
	case CategoryResearch:
		s.Research = blob
	case CategoryMilitary:
		s.Military = blob
	case CategoryMilitaryBuilt:
		s.MilitaryBuilt = blob
	case CategoryMilitaryDestroyed:
		s.MilitaryDestroyed = blob
	case CategoryMilitaryLost:
		s.MilitaryLost = blob
	case CategoryHonor:
		s.Honor = blob
	}
}
