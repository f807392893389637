package api

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// Highscore table types as accepted by highscore.xml.
var rankingTypes = map[domain.Category]int{
	domain.CategoryTotal:             0,
	domain.CategoryEconomy:           1,
	domain.CategoryResearch:          2,
	domain.CategoryMilitary:          3,
	domain.CategoryMilitaryLost:      4,
	domain.CategoryMilitaryBuilt:     5,
	domain.CategoryMilitaryDestroyed: 6,
	domain.CategoryHonor:             7,
}

// FetchObserver is told about every upstream document request.
type FetchObserver interface {
	ObserveFetch(document string, err error, elapsed time.Duration)
}

type OGameClient struct {
	baseURL  string
	serverID string
	client   *fasthttp.Client
	logger   zerolog.Logger
	observer FetchObserver

	timeout time.Duration
	retries uint64
	backoff time.Duration

	cacheMu  sync.Mutex
	cache    map[string]cachedDocument
	cacheTTL time.Duration
	now      func() time.Time
}

type cachedDocument struct {
	body      []byte
	fetchedAt time.Time
}

func NewOGameClient(cfg *config.Config, logger zerolog.Logger, observer FetchObserver) *OGameClient {
	return &OGameClient{
		baseURL:  cfg.BaseURL(),
		serverID: cfg.ServerID,
		client: &fasthttp.Client{
			MaxConnsPerHost:     constants.ExternalAPIMaxConns,
			ReadTimeout:         cfg.FetchTimeout,
			WriteTimeout:        cfg.FetchTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
			MaxResponseBodySize: constants.ReportFeedMaxBytes,
		},
		logger:   logger,
		observer: observer,
		timeout:  cfg.FetchTimeout,
		retries:  uint64(cfg.FetchRetries),
		backoff:  cfg.RetryBackoff,
		cache:    make(map[string]cachedDocument),
		cacheTTL: constants.DocumentCacheTTL,
		now:      time.Now,
	}
}

// ServerID is the universe this client reads.
func (c *OGameClient) ServerID() string {
	return c.serverID
}

type playersDocument struct {
	Players []struct {
		ID       int64  `xml:"id,attr"`
		Name     string `xml:"name,attr"`
		Status   string `xml:"status,attr"`
		Alliance string `xml:"alliance,attr"`
	} `xml:"player"`
}

type highscoreDocument struct {
	Players []struct {
		ID       int64   `xml:"id,attr"`
		Position int64   `xml:"position,attr"`
		Score    float64 `xml:"score,attr"`
		Ships    string  `xml:"ships,attr"`
	} `xml:"player"`
}

type playerDataDocument struct {
	ID       int64  `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	ServerID string `xml:"serverId,attr"`
	Planets  []struct {
		ID     int64  `xml:"id,attr"`
		Name   string `xml:"name,attr"`
		Coords string `xml:"coords,attr"`
		Moon   *struct {
			ID   int64  `xml:"id,attr"`
			Name string `xml:"name,attr"`
			Size int64  `xml:"size,attr"`
		} `xml:"moon"`
	} `xml:"planets>planet"`
	Alliance *struct {
		ID   int64  `xml:"id,attr"`
		Name string `xml:"name"`
		Tag  string `xml:"tag"`
	} `xml:"alliance"`
}

type alliancesDocument struct {
	Alliances []struct {
		ID        int64  `xml:"id,attr"`
		Name      string `xml:"name,attr"`
		Tag       string `xml:"tag,attr"`
		Founder   int64  `xml:"founder,attr"`
		FoundDate string `xml:"foundDate,attr"`
		Logo      string `xml:"logo,attr"`
		Homepage  string `xml:"homepage,attr"`
		Open      string `xml:"open,attr"`
		Members   []struct {
			ID int64 `xml:"id,attr"`
		} `xml:"player"`
	} `xml:"alliance"`
}

type universeDocument struct {
	Planets []struct {
		Player int64  `xml:"player,attr"`
		Coords string `xml:"coords,attr"`
	} `xml:"planet"`
}

func (c *OGameClient) Roster(ctx context.Context) ([]domain.RosterEntry, error) {
	doc, err := fetchDocument[playersDocument](ctx, c, "players.xml", true)
	if err != nil {
		return nil, err
	}

	roster := make([]domain.RosterEntry, 0, len(doc.Players))
	for _, p := range doc.Players {
		allianceID, _ := strconv.ParseInt(p.Alliance, 10, 64)
		roster = append(roster, domain.RosterEntry{
			ID:         p.ID,
			Name:       p.Name,
			Status:     p.Status,
			AllianceID: allianceID,
		})
	}
	return roster, nil
}

func (c *OGameClient) RankingTable(ctx context.Context, category domain.Category) ([]domain.RankingRow, error) {
	typ, ok := rankingTypes[category]
	if !ok {
		return nil, fmt.Errorf("unknown ranking category %q", category)
	}

	doc, err := fetchDocument[highscoreDocument](ctx, c, fmt.Sprintf("highscore.xml?category=1&type=%d", typ), true)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.RankingRow, 0, len(doc.Players))
	for _, p := range doc.Players {
		row := domain.RankingRow{ID: p.ID, Position: p.Position, Score: p.Score}
		if n, err := strconv.ParseInt(p.Ships, 10, 64); err == nil {
			row.Ships = &n
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PlayerDetail resolves name through the roster and fetches the player's
// data document. An unknown name is domain.ErrNotFound.
func (c *OGameClient) PlayerDetail(ctx context.Context, name string) (*domain.PlayerDetail, error) {
	roster, err := c.Roster(ctx)
	if err != nil {
		return nil, err
	}

	id := int64(-1)
	for _, p := range roster {
		if p.Name == name {
			id = p.ID
			break
		}
	}
	if id < 0 {
		return nil, fmt.Errorf("player %q: %w", name, domain.ErrNotFound)
	}

	doc, err := fetchDocument[playerDataDocument](ctx, c, fmt.Sprintf("playerData.xml?id=%d", id), false)
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 && doc.Name == "" {
		return nil, fmt.Errorf("player %q: %w", name, domain.ErrNotFound)
	}

	detail := &domain.PlayerDetail{
		ID:       doc.ID,
		ServerID: c.serverID,
		Name:     doc.Name,
		Planets:  make([]domain.Planet, 0, len(doc.Planets)),
	}
	for _, pl := range doc.Planets {
		planet := domain.Planet{ID: pl.ID, Name: pl.Name, Coords: pl.Coords}
		if pl.Moon != nil {
			planet.Moon = &domain.Moon{ID: pl.Moon.ID, Name: pl.Moon.Name, Size: pl.Moon.Size}
		}
		detail.Planets = append(detail.Planets, planet)
	}
	if doc.Alliance != nil && doc.Alliance.ID != 0 {
		detail.Alliance = &domain.AllianceRef{ID: doc.Alliance.ID, Name: doc.Alliance.Name, Tag: doc.Alliance.Tag}
	}
	return detail, nil
}

func (c *OGameClient) Alliances(ctx context.Context) ([]domain.AllianceListing, error) {
	doc, err := fetchDocument[alliancesDocument](ctx, c, "alliances.xml", true)
	if err != nil {
		return nil, err
	}

	listing := make([]domain.AllianceListing, 0, len(doc.Alliances))
	for _, a := range doc.Alliances {
		entry := domain.AllianceListing{
			ID:              a.ID,
			Name:            a.Name,
			Tag:             a.Tag,
			FounderID:       a.Founder,
			FoundDate:       parseUnix(a.FoundDate),
			Logo:            a.Logo,
			Homepage:        a.Homepage,
			ApplicationOpen: ParseApplicationOpen(a.Open),
			MemberIDs:       make([]int64, 0, len(a.Members)),
		}
		for _, m := range a.Members {
			entry.MemberIDs = append(entry.MemberIDs, m.ID)
		}
		listing = append(listing, entry)
	}
	return listing, nil
}

func (c *OGameClient) allianceByTag(ctx context.Context, tag string) (*domain.AllianceListing, error) {
	listing, err := c.Alliances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range listing {
		if listing[i].Tag == tag {
			return &listing[i], nil
		}
	}
	return nil, fmt.Errorf("alliance %q: %w", tag, domain.ErrNotFound)
}

func (c *OGameClient) AllianceMembers(ctx context.Context, tag string) ([]int64, error) {
	a, err := c.allianceByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	return a.MemberIDs, nil
}

// AlliancePlanetDistribution collects the coordinates of every planet owned by
// a member of the alliance, with the planet count per galaxy.
func (c *OGameClient) AlliancePlanetDistribution(ctx context.Context, tag string) (*domain.PlanetDistribution, error) {
	a, err := c.allianceByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	doc, err := fetchDocument[universeDocument](ctx, c, "universe.xml", true)
	if err != nil {
		return nil, err
	}

	members := make(map[int64]struct{}, len(a.MemberIDs))
	for _, id := range a.MemberIDs {
		members[id] = struct{}{}
	}

	dist := &domain.PlanetDistribution{Coords: []string{}, ByGalaxy: map[string]int64{}}
	for _, p := range doc.Planets {
		if _, ok := members[p.Player]; !ok {
			continue
		}
		dist.Coords = append(dist.Coords, p.Coords)
		if galaxy, _, ok := strings.Cut(p.Coords, ":"); ok {
			dist.ByGalaxy[galaxy]++
		}
	}
	sort.Strings(dist.Coords)
	return dist, nil
}

// ParseApplicationOpen maps the alliance "open" attribute to a tri-state:
// "1" is open, any other digit string is closed, anything else is unknown.
func ParseApplicationOpen(raw string) *bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return nil
		}
	}
	open := raw == "1"
	return &open
}

func parseUnix(raw string) *time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

func fetchDocument[T any](ctx context.Context, client *OGameClient, path string, cacheable bool) (*T, error) {
	body, err := client.document(ctx, path, cacheable)
	if err != nil {
		return nil, err
	}

	var result T
	if err := xml.Unmarshal(body, &result); err != nil {
		client.forget(path)
		return nil, domain.Transient(fmt.Errorf("failed to parse %s: %w", path, err))
	}
	return &result, nil
}

func (c *OGameClient) document(ctx context.Context, path string, cacheable bool) ([]byte, error) {
	if cacheable {
		c.cacheMu.Lock()
		cached, ok := c.cache[path]
		c.cacheMu.Unlock()
		if ok && c.now().Sub(cached.fetchedAt) < c.cacheTTL {
			return cached.body, nil
		}
	}

	start := time.Now()
	var body []byte
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.get(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return err
			}
			c.logger.Debug().Err(err).Str("document", path).Msg("retrying upstream fetch")
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if c.observer != nil {
		c.observer.ObserveFetch(documentName(path), err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cacheMu.Lock()
		c.cache[path] = cachedDocument{body: body, fetchedAt: c.now()}
		c.cacheMu.Unlock()
	}
	return body, nil
}

func (c *OGameClient) forget(path string) {
	c.cacheMu.Lock()
	delete(c.cache, path)
	c.cacheMu.Unlock()
}

func (c *OGameClient) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/" + path)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to fetch %s: %w", path, err))
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	default:
		return nil, domain.Transient(fmt.Errorf("API error: %d on %s", resp.StatusCode(), path))
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func documentName(path string) string {
	name, _, _ := strings.Cut(path, "?")
	return name
}
