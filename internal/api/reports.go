package api

import (
	"context"
	"encoding/json"
	"fmt"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// ReportFeedClient reads combat reports that were already classified
// upstream, served as a JSON array.
type ReportFeedClient struct {
	url     string
	client  *fasthttp.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func NewReportFeedClient(cfg *config.Config, logger zerolog.Logger) *ReportFeedClient {
	return &ReportFeedClient{
		url: cfg.ReportFeedURL,
		client: &fasthttp.Client{
			ReadTimeout:         cfg.FetchTimeout,
			WriteTimeout:        cfg.FetchTimeout,
			MaxResponseBodySize: constants.ReportFeedMaxBytes,
		},
		timeout: cfg.FetchTimeout,
		logger:  logger,
	}
}

// CombatReports returns the current feed. Without a configured URL the feed is empty.
func (c *ReportFeedClient) CombatReports(ctx context.Context) ([]domain.ClassifiedReport, error) {
	if c.url == "" {
		return nil, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to fetch report feed: %w", err))
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, domain.Transient(fmt.Errorf("report feed error: %d", resp.StatusCode()))
	}

	return DecodeReportFeed(resp.Body())
}

// DecodeReportFeed parses a feed body, dropping entries without a title, a
// url or a known winner.
func DecodeReportFeed(body []byte) ([]domain.ClassifiedReport, error) {
	var reports []domain.ClassifiedReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to parse report feed: %w", err))
	}

	valid := reports[:0]
	for _, r := range reports {
		if r.Title == "" || r.URL == "" {
			continue
		}
		switch r.Winner {
		case domain.WinnerAttackers, domain.WinnerDefenders, domain.WinnerDraw:
			valid = append(valid, r)
		}
	}
	return valid, nil
}
