// Package ships maps localized equipment names to stable canonical ids.
//
// Extending the table for new equipment is a manual edit of catalog below.
package ships

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Ship struct {
	ID      int
	Name    string
	Aliases []string
}

var catalog = []Ship{
	{1, "Light Fighter", []string{"Caça Ligeiro", "Leichter Jäger", "Cazador ligero"}},
	{2, "Heavy Fighter", []string{"Caça Pesado", "Schwerer Jäger", "Cazador pesado"}},
	{3, "Cruiser", []string{"Cruzador", "Kreuzer", "Crucero"}},
	{4, "Battleship", []string{"Nave de Batalha", "Schlachtschiff", "Nave de batalla"}},
	{5, "Battlecruiser", []string{"Interceptador", "Schlachtkreuzer", "Acorazado"}},
	{6, "Bomber", []string{"Bombardeiro", "Bomber", "Bombardero"}},
	{7, "Destroyer", []string{"Destruidor", "Zerstörer", "Destructor"}},
	{8, "Deathstar", []string{"Estrela da Morte", "Todesstern", "Estrella de la muerte", "Death Star"}},
	{9, "Small Cargo", []string{"Cargueiro Pequeno", "Kleiner Transporter", "Nave pequeña de carga", "Small Cargo Ship"}},
	{10, "Large Cargo", []string{"Cargueiro Grande", "Großer Transporter", "Nave grande de carga", "Large Cargo Ship"}},
	{11, "Colony Ship", []string{"Nave de Colonização", "Kolonieschiff", "Colonizador"}},
	{12, "Recycler", []string{"Reciclador", "Recycler", "Reciclador"}},
	{13, "Espionage Probe", []string{"Sonda de Espionagem", "Spionagesonde", "Sonda de espionaje"}},
	{14, "Solar Satellite", []string{"Satélite Solar", "Solarsatellit", "Satélite solar"}},
	{15, "Crawler", []string{"Rastejador", "Crawler", "Taladrador"}},
	{16, "Reaper", []string{"Ceifeira", "Reaper", "Segador"}},
	{17, "Pathfinder", []string{"Explorador", "Pathfinder", "Explorador"}},
}

var (
	byKey  map[string]int
	byID   map[int]Ship
	sorted []Ship
)

func init() {
	byKey = make(map[string]int, len(catalog)*4)
	byID = make(map[int]Ship, len(catalog))
	for _, s := range catalog {
		byID[s.ID] = s
		byKey[fold(s.Name)] = s.ID
		for _, a := range s.Aliases {
			byKey[fold(a)] = s.ID
		}
	}

	sorted = append([]Ship(nil), catalog...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
}

// fold makes lookups insensitive to case, accents and surrounding or repeated spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Resolve returns the canonical id for a display name, or false when the name is unknown.
func Resolve(name string) (int, bool) {
	id, ok := byKey[fold(name)]
	return id, ok
}

// Name returns the canonical name for id.
func Name(id int) (string, bool) {
	s, ok := byID[id]
	return s.Name, ok
}

// All lists every known ship sorted by canonical name.
func All() []Ship {
	return append([]Ship(nil), sorted...)
}

// IDs lists every known canonical id in ascending order.
func IDs() []int {
	ids := make([]int, 0, len(catalog))
	for _, s := range catalog {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	return ids
}
