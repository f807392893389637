package analytics

import (
	"fmt"
	"invictus/internal/codec"
	"invictus/internal/domain"
	"invictus/internal/ships"
	"sort"
)

// ShipFrequency is the share of one canonical ship in an observed fleet, in percent.
type ShipFrequency struct {
	ID        int     `json:"id"`
	Ship      string  `json:"ship"`
	Count     int64   `json:"count"`
	Frequency float64 `json:"frequency"`
}

// PlayerFleet estimates the fleet composition of the named player from the
// combat reports naming them and from manual fleet records.
func PlayerFleet(name string, reports []domain.CombatReport, records []domain.FleetRecord) ([]ShipFrequency, error) {
	tally := map[int]int64{}
	for _, r := range reports {
		for _, blob := range [][]byte{r.Attackers, r.Defenders} {
			side, err := decodeSide(r.ID, blob)
			if err != nil {
				return nil, err
			}
			if key, ok := firstMatch(side, name); ok {
				count(tally, side[key].Ships)
			}
		}
	}
	if err := countRecords(tally, records); err != nil {
		return nil, err
	}
	return normalize(tally), nil
}

// UniverseFleet is PlayerFleet over every participant of every report.
func UniverseFleet(reports []domain.CombatReport, records []domain.FleetRecord) ([]ShipFrequency, error) {
	tally := map[int]int64{}
	for _, r := range reports {
		for _, blob := range [][]byte{r.Attackers, r.Defenders} {
			side, err := decodeSide(r.ID, blob)
			if err != nil {
				return nil, err
			}
			for _, p := range side {
				count(tally, p.Ships)
			}
		}
	}
	if err := countRecords(tally, records); err != nil {
		return nil, err
	}
	return normalize(tally), nil
}

// firstMatch returns the lowest-sorting participant key naming the player, so
// a player listed under several coordinates on one side counts once and
// always the same way.
func firstMatch(side map[string]domain.Participant, name string) (string, bool) {
	keys := make([]string, 0, len(side))
	for key := range side {
		if domain.ParticipantName(key) == name {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

func decodeSide(reportID int64, blob []byte) (map[string]domain.Participant, error) {
	var side map[string]domain.Participant
	if err := codec.DecodeInto(blob, &side); err != nil {
		return nil, fmt.Errorf("failed to decode participants of report %d: %w", reportID, err)
	}
	return side, nil
}

func countRecords(tally map[int]int64, records []domain.FleetRecord) error {
	for _, fr := range records {
		var fleet map[string]int64
		if err := codec.DecodeInto(fr.Fleet, &fleet); err != nil {
			return fmt.Errorf("failed to decode fleet record %s: %w", fr.ID, err)
		}
		count(tally, fleet)
	}
	return nil
}

// count adds every resolvable ship; unknown names are dropped.
func count(tally map[int]int64, fleet map[string]int64) {
	for name, n := range fleet {
		if n <= 0 {
			continue
		}
		if id, ok := ships.Resolve(name); ok {
			tally[id] += n
		}
	}
}

func normalize(tally map[int]int64) []ShipFrequency {
	var total int64
	for _, n := range tally {
		total += n
	}
	denominator := float64(max(total, 1))

	all := ships.All()
	out := make([]ShipFrequency, 0, len(all))
	for _, s := range all {
		n := tally[s.ID]
		out = append(out, ShipFrequency{
			ID:        s.ID,
			Ship:      s.Name,
			Count:     n,
			Frequency: round2(float64(n) / denominator * 100),
		})
	}
	return out
}
