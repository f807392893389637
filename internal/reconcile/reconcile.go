package reconcile

import (
	"context"
	"errors"
	"fmt"
	"invictus/internal/codec"
	"invictus/internal/domain"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeSkip
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeSkip:
		return "skip"
	default:
		return "fatal"
	}
}

// PassReport summarizes one pass.
type PassReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	PlayersUpdated     int `json:"players_updated"`
	PlayersSkipped     int `json:"players_skipped"`
	ScoresCreated      int `json:"scores_created"`
	ScoresSkipped      int `json:"scores_skipped"`
	AlliancesLinked    int `json:"alliances_linked"`
	AlliancesRefreshed int `json:"alliances_refreshed"`
	AlliancesSkipped   int `json:"alliances_skipped"`
	ReportsStored      int `json:"reports_stored"`
	PlayersDeleted     int `json:"players_deleted"`
}

// Observer receives every finished pass, failed or not.
type Observer interface {
	ObservePass(report *PassReport, err error)
}

type Reconciler struct {
	logger   zerolog.Logger
	observer Observer
	now      func() time.Time
}

func New(logger zerolog.Logger, observer Observer) *Reconciler {
	return &Reconciler{
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

// passState is what step 1 gathers for the rest of the pass.
type passState struct {
	serverID  string
	timestamp time.Time
	roster    []domain.RosterEntry
	rankings  map[domain.Category]map[int64]domain.RankingRow
	alliances map[int64]domain.AllianceListing // nil when the listing could not be fetched
}

// RunPass performs one full reconciliation sweep. It only returns an error
// when the roster or a ranking table could not be obtained (ErrPassAborted)
// or ctx ends; every other failure is logged and skipped.
func (r *Reconciler) RunPass(ctx context.Context, universe UniverseSource, reports CombatReportSource, store Store) (*PassReport, error) {
	start := r.now()
	report := &PassReport{ID: uuid.NewString(), StartedAt: start.UTC()}
	logger := r.logger.With().Str("pass_id", report.ID).Logger()
	logger.Info().Msg("starting pass")

	report, err := r.runPass(ctx, logger, report, universe, reports, store)
	report.Duration = r.now().Sub(start)

	if r.observer != nil {
		r.observer.ObservePass(report, err)
	}
	if err != nil {
		logger.Error().Err(err).Dur("duration", report.Duration).Msg("pass failed")
		return report, err
	}

	logger.Info().
		Int("players_updated", report.PlayersUpdated).
		Int("players_skipped", report.PlayersSkipped).
		Int("scores_created", report.ScoresCreated).
		Int("alliances_refreshed", report.AlliancesRefreshed).
		Int("reports_stored", report.ReportsStored).
		Int("players_deleted", report.PlayersDeleted).
		Dur("duration", report.Duration).
		Msg("pass finished")
	return report, nil
}

func (r *Reconciler) runPass(ctx context.Context, logger zerolog.Logger, report *PassReport, universe UniverseSource, reports CombatReportSource, store Store) (*PassReport, error) {
	state, err := r.gather(ctx, logger, universe)
	if err != nil {
		return report, err
	}

	for _, entry := range state.roster {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch out, err := r.reconcilePlayer(ctx, logger, state, entry, universe, store, report); out {
		case outcomeOK:
			report.PlayersUpdated++
		case outcomeSkip:
			report.PlayersSkipped++
			logger.Warn().Err(err).Int64("player_id", entry.ID).Str("name", entry.Name).Msg("skipping player this pass")
		case outcomeFatal:
			return report, err
		}
	}

	if err := r.refreshAlliances(ctx, logger, state, universe, store, report); err != nil {
		return report, err
	}

	if reports != nil {
		if out, err := r.storeCombatReports(ctx, logger, state, reports, store, report); out == outcomeSkip {
			logger.Warn().Err(err).Msg("skipping combat reports this pass")
		} else if out == outcomeFatal {
			return report, err
		}
	}

	if err := r.detectDeletions(ctx, logger, state, universe, store, report); err != nil {
		return report, err
	}
	return report, nil
}

// gather fetches the roster, every ranking table and the alliance listing.
func (r *Reconciler) gather(ctx context.Context, logger zerolog.Logger, universe UniverseSource) (*passState, error) {
	state := &passState{
		serverID:  universe.ServerID(),
		timestamp: r.now().UTC().Truncate(time.Second),
		rankings:  make(map[domain.Category]map[int64]domain.RankingRow, len(domain.Categories)),
	}

	roster, err := universe.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch roster: %w", domain.ErrPassAborted, err)
	}
	state.roster = roster

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, category := range domain.Categories {
		g.Go(func() error {
			rows, err := universe.RankingTable(gctx, category)
			if err != nil {
				return fmt.Errorf("failed to fetch %s ranking: %w", category, err)
			}

			index := make(map[int64]domain.RankingRow, len(rows))
			for _, row := range rows {
				if _, dup := index[row.ID]; !dup {
					index[row.ID] = row
				}
			}

			mu.Lock()
			state.rankings[category] = index
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPassAborted, err)
	}

	listing, err := universe.Alliances(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch alliance listing, skipping alliance linkage")
	} else {
		state.alliances = make(map[int64]domain.AllianceListing, len(listing))
		for _, a := range listing {
			if _, dup := state.alliances[a.ID]; !dup {
				state.alliances[a.ID] = a
			}
		}
	}

	logger.Info().
		Int("roster", len(roster)).
		Int("alliances", len(state.alliances)).
		Time("timestamp", state.timestamp).
		Msg("pass data gathered")
	return state, nil
}

func (r *Reconciler) reconcilePlayer(ctx context.Context, logger zerolog.Logger, state *passState, entry domain.RosterEntry, universe UniverseSource, store Store, report *PassReport) (outcome, error) {
	detail, err := universe.PlayerDetail(ctx, entry.Name)
	if err != nil {
		return outcomeSkip, fmt.Errorf("failed to fetch detail: %w", err)
	}

	planets, err := codec.Encode(detail.Planets)
	if err != nil {
		return outcomeSkip, fmt.Errorf("failed to encode planets: %w", err)
	}

	player := &domain.Player{
		PlayerID: entry.ID,
		ServerID: state.serverID,
		Name:     detail.Name,
		Status:   entry.Status,
		Planets:  planets,
	}
	if player.Name == "" {
		player.Name = entry.Name
	}
	if row, ok := state.rankings[domain.CategoryTotal][entry.ID]; ok {
		rank := row.Position
		player.Rank = &rank
	}
	if err := store.UpsertPlayer(ctx, player); err != nil {
		return outcomeSkip, err
	}

	switch created, err := r.recordScore(ctx, state, player, store); {
	case errors.Is(err, domain.ErrMissingRanking):
		report.ScoresSkipped++
		logger.Debug().Int64("player_id", entry.ID).Msg("ranking row missing, score skipped")
	case err != nil:
		report.ScoresSkipped++
		logger.Warn().Err(err).Int64("player_id", entry.ID).Msg("failed to record score")
	case created:
		report.ScoresCreated++
	}

	linked, err := r.linkAlliance(ctx, logger, state, player, detail, store)
	if err != nil {
		logger.Warn().Err(err).Int64("player_id", entry.ID).Msg("failed to link alliance")
	} else if linked {
		report.AlliancesLinked++
	}
	return outcomeOK, nil
}

// recordScore creates the pass's score row for the player when every ranking
// table has a row for them and none exists yet for this timestamp.
func (r *Reconciler) recordScore(ctx context.Context, state *passState, player *domain.Player, store Store) (bool, error) {
	score := &domain.Score{
		PlayerID:  player.ID,
		Timestamp: state.timestamp.Unix(),
		Datetime:  state.timestamp,
	}

	for _, category := range domain.Categories {
		row, ok := state.rankings[category][player.PlayerID]
		if !ok {
			return false, fmt.Errorf("%s: %w", category, domain.ErrMissingRanking)
		}

		entry := domain.ScoreEntry{Score: row.Score, Rank: row.Position}
		if category == domain.CategoryMilitary {
			var ships int64
			if row.Ships != nil {
				ships = *row.Ships
			}
			entry.Ships = &ships
		}

		blob, err := codec.Encode(entry)
		if err != nil {
			return false, fmt.Errorf("failed to encode %s score: %w", category, err)
		}
		score.SetBlob(category, blob)
	}

	return store.CreateScoreIfAbsent(ctx, score)
}

func (r *Reconciler) linkAlliance(ctx context.Context, logger zerolog.Logger, state *passState, player *domain.Player, detail *domain.PlayerDetail, store Store) (bool, error) {
	if detail.Alliance == nil {
		return false, store.SetPlayerAlliance(ctx, player.ID, nil)
	}
	if state.alliances == nil {
		return false, nil
	}

	listing, ok := state.alliances[detail.Alliance.ID]
	if !ok {
		logger.Debug().Int64("ally_id", detail.Alliance.ID).Msg("alliance not in listing, linkage skipped")
		return false, nil
	}

	alliance := &domain.Alliance{
		AllyID:          listing.ID,
		Name:            listing.Name,
		Tag:             listing.Tag,
		FounderID:       r.resolveFounder(ctx, logger, state, player, listing.FounderID, store),
		FoundDate:       listing.FoundDate,
		Logo:            listing.Logo,
		Homepage:        listing.Homepage,
		ApplicationOpen: listing.ApplicationOpen,
	}
	if err := store.UpsertAlliance(ctx, alliance); err != nil {
		return false, err
	}
	if err := store.SetPlayerAlliance(ctx, player.ID, &alliance.ID); err != nil {
		return false, err
	}
	return true, nil
}

// resolveFounder binds the founder to the player being processed when the ids
// match, otherwise to a known player, otherwise to nothing.
func (r *Reconciler) resolveFounder(ctx context.Context, logger zerolog.Logger, state *passState, player *domain.Player, founderID int64, store Store) *int64 {
	if founderID == player.PlayerID {
		id := player.ID
		return &id
	}
	if founderID <= 0 {
		return nil
	}

	founder, err := store.GetPlayerByExternalID(ctx, state.serverID, founderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn().Err(err).Int64("founder_id", founderID).Msg("failed to look up founder")
		}
		return nil
	}
	return &founder.ID
}

func (r *Reconciler) refreshAlliances(ctx context.Context, logger zerolog.Logger, state *passState, universe UniverseSource, store Store, report *PassReport) error {
	alliances, err := store.ListAlliances(ctx, "")
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list alliances, skipping refresh")
		return nil
	}

	for _, a := range alliances {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch out, err := r.refreshAlliance(ctx, state, a, universe, store); out {
		case outcomeOK:
			report.AlliancesRefreshed++
		case outcomeSkip:
			report.AlliancesSkipped++
			logger.Warn().Err(err).Int64("ally_id", a.AllyID).Str("tag", a.Tag).Msg("skipping alliance refresh")
		case outcomeFatal:
			return err
		}
	}
	return nil
}

func (r *Reconciler) refreshAlliance(ctx context.Context, state *passState, a domain.Alliance, universe UniverseSource, store Store) (outcome, error) {
	dist, err := universe.AlliancePlanetDistribution(ctx, a.Tag)
	if err != nil {
		return outcomeSkip, fmt.Errorf("failed to fetch planet distribution: %w", err)
	}
	members, err := universe.AllianceMembers(ctx, a.Tag)
	if err != nil {
		return outcomeSkip, fmt.Errorf("failed to fetch members: %w", err)
	}

	coords, err := codec.Encode(dist.Coords)
	if err != nil {
		return outcomeSkip, err
	}
	byGalaxy, err := codec.Encode(dist.ByGalaxy)
	if err != nil {
		return outcomeSkip, err
	}

	if _, err := store.RefreshAlliance(ctx, a.ID, state.serverID, members, coords, byGalaxy); err != nil {
		return outcomeSkip, err
	}
	return outcomeOK, nil
}

func (r *Reconciler) storeCombatReports(ctx context.Context, logger zerolog.Logger, state *passState, source CombatReportSource, store Store, report *PassReport) (outcome, error) {
	feed, err := source.CombatReports(ctx)
	if err != nil {
		return outcomeSkip, fmt.Errorf("failed to fetch combat reports: %w", err)
	}

	for _, cr := range feed {
		if err := ctx.Err(); err != nil {
			return outcomeFatal, err
		}

		row, err := r.combatReportRow(ctx, state, cr, store)
		if err != nil {
			logger.Warn().Err(err).Str("title", cr.Title).Msg("skipping combat report")
			continue
		}
		created, err := store.CreateCombatReportIfAbsent(ctx, row)
		if err != nil {
			logger.Warn().Err(err).Str("title", cr.Title).Msg("failed to store combat report")
			continue
		}
		if created {
			report.ReportsStored++
		}
	}
	return outcomeOK, nil
}

func (r *Reconciler) combatReportRow(ctx context.Context, state *passState, cr domain.ClassifiedReport, store Store) (*domain.CombatReport, error) {
	attackers, err := codec.Encode(participants(cr.Attackers))
	if err != nil {
		return nil, fmt.Errorf("failed to encode attackers: %w", err)
	}
	defenders, err := codec.Encode(participants(cr.Defenders))
	if err != nil {
		return nil, fmt.Errorf("failed to encode defenders: %w", err)
	}

	var names []string
	for key := range cr.Attackers {
		names = append(names, domain.ParticipantName(key))
	}
	for key := range cr.Defenders {
		names = append(names, domain.ParticipantName(key))
	}
	ids, err := store.FindPlayerIDsByNames(ctx, state.serverID, names)
	if err != nil {
		return nil, err
	}

	return &domain.CombatReport{
		Title:       cr.Title,
		URL:         cr.URL,
		Date:        cr.Date,
		Winner:      cr.Winner,
		Attackers:   attackers,
		Defenders:   defenders,
		AttackerIDs: resolveSide(cr.Attackers, ids),
		DefenderIDs: resolveSide(cr.Defenders, ids),
	}, nil
}

func participants(side map[string]domain.Participant) map[string]domain.Participant {
	if side == nil {
		return map[string]domain.Participant{}
	}
	return side
}

func resolveSide(side map[string]domain.Participant, ids map[string]int64) []int64 {
	seen := map[int64]struct{}{}
	var resolved []int64
	for key := range side {
		id, ok := ids[domain.ParticipantName(key)]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, id)
	}
	return resolved
}

// detectDeletions re-probes every player not already deleted. Only a clean
// not-found marks a player deleted.
func (r *Reconciler) detectDeletions(ctx context.Context, logger zerolog.Logger, state *passState, universe UniverseSource, store Store, report *PassReport) error {
	players, err := store.ListPlayersForDeletionProbe(ctx, state.serverID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list players, skipping deletion probe")
		return nil
	}

	for _, p := range players {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := universe.PlayerDetail(ctx, p.Name)
		switch {
		case err == nil:
			continue
		case errors.Is(err, domain.ErrNotFound):
			if err := store.SetPlayerStatus(ctx, p.ID, domain.StatusDeleted); err != nil {
				logger.Warn().Err(err).Int64("player_id", p.PlayerID).Msg("failed to mark player deleted")
				continue
			}
			report.PlayersDeleted++
			logger.Info().Int64("player_id", p.PlayerID).Str("name", p.Name).Msg("player marked deleted")
		default:
			logger.Debug().Err(err).Int64("player_id", p.PlayerID).Msg("deletion probe inconclusive")
		}
	}
	return nil
}
