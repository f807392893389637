package analytics

import (
	"invictus/internal/codec"
	"invictus/internal/domain"
	"invictus/internal/ships"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func side(entries map[string]map[string]int64) []byte {
	out := map[string]domain.Participant{}
	for name, fleet := range entries {
		out[name] = domain.Participant{Ships: fleet}
	}
	return codec.MustEncode(out)
}

func frequencyOf(dist []ShipFrequency, name string) ShipFrequency {
	for _, s := range dist {
		if s.Ship == name {
			return s
		}
	}
	return ShipFrequency{}
}

func TestFleetComposition(t *testing.T) {
	Convey("Given combat reports and fleet records", t, func() {
		reports := []domain.CombatReport{
			{
				ID: 1,
				Attackers: side(map[string]map[string]int64{
					"Alpha [1:2:3]": {"Cruiser": 30, "Caça Ligeiro": 10},
				}),
				Defenders: side(map[string]map[string]int64{
					"Beta [4:5:6]": {"Light Fighter": 100, "Mystery Hull": 5},
				}),
			},
			{
				ID:        2,
				Attackers: side(map[string]map[string]int64{"Beta": {"Bomber": 50}}),
				Defenders: side(map[string]map[string]int64{"Alpha": {"kreuzer": 20}}),
			},
		}
		records := []domain.FleetRecord{
			{ID: "a", Fleet: codec.MustEncode(map[string]int64{"Recycler": 40})},
		}

		Convey("A player's fleet counts only their entries and records", func() {
			dist, err := PlayerFleet("Alpha", reports, records)
			So(err, ShouldBeNil)
			So(dist, ShouldHaveLength, len(ships.IDs()))

			So(frequencyOf(dist, "Cruiser").Count, ShouldEqual, int64(50))
			So(frequencyOf(dist, "Cruiser").Frequency, ShouldEqual, 50.0)
			So(frequencyOf(dist, "Light Fighter").Frequency, ShouldEqual, 10.0)
			So(frequencyOf(dist, "Recycler").Frequency, ShouldEqual, 40.0)
			So(frequencyOf(dist, "Bomber").Count, ShouldEqual, int64(0))
		})

		Convey("The universe fleet counts every participant, dropping unknown ships", func() {
			dist, err := UniverseFleet(reports, records)
			So(err, ShouldBeNil)

			var total float64
			for _, s := range dist {
				total += s.Frequency
			}
			So(total, ShouldAlmostEqual, 100.0, 0.1)
			So(frequencyOf(dist, "Light Fighter").Count, ShouldEqual, int64(110))
		})

		Convey("The output is sorted by ship name", func() {
			dist, err := UniverseFleet(reports, nil)
			So(err, ShouldBeNil)
			for i := 1; i < len(dist); i++ {
				So(dist[i-1].Ship < dist[i].Ship, ShouldBeTrue)
			}
		})
	})

	Convey("Without any data every ship is present at zero", t, func() {
		dist, err := PlayerFleet("Nobody", nil, nil)
		So(err, ShouldBeNil)
		So(dist, ShouldHaveLength, len(ships.IDs()))
		for _, s := range dist {
			So(s.Frequency, ShouldEqual, 0.0)
		}
	})

	Convey("A corrupt report blob fails the computation", t, func() {
		_, err := UniverseFleet([]domain.CombatReport{{ID: 9, Attackers: []byte{0x01}}}, nil)
		So(err, ShouldNotBeNil)
		So(codec.IsDecodeError(err), ShouldBeTrue)
	})
}

func TestPlayerFleetRepeatedParticipant(t *testing.T) {
	Convey("Given a player listed under two coordinates on one side", t, func() {
		reports := []domain.CombatReport{{
			ID: 1,
			Attackers: side(map[string]map[string]int64{
				"Alpha [4:5:6]": {"Bomber": 10},
				"Alpha [1:2:3]": {"Cruiser": 10},
			}),
			Defenders: side(map[string]map[string]int64{"Beta": {"Recycler": 1}}),
		}}

		Convey("Every call counts the same single entry", func() {
			for range 50 {
				dist, err := PlayerFleet("Alpha", reports, nil)
				So(err, ShouldBeNil)
				So(frequencyOf(dist, "Cruiser").Count, ShouldEqual, int64(10))
				So(frequencyOf(dist, "Bomber").Count, ShouldEqual, int64(0))
			}
		})
	})
}
