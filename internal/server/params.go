package server

import (
	"errors"
	"fmt"
	"invictus/internal/analytics"
	"invictus/internal/domain"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var errBadRequest = errors.New("bad request")

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return &v, nil
}

// queryTime accepts RFC3339 or unix seconds.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return &t, nil
}

func timeRange(r *http.Request) (from, to *time.Time, err error) {
	if from, err = queryTime(r, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = queryTime(r, "to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func queryCategory(r *http.Request) (domain.Category, error) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return domain.CategoryTotal, nil
	}
	c, err := domain.ParseCategory(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return c, nil
}

func queryPeriod(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return time.Hour, nil
	}
	p, err := analytics.ParsePeriod(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return p, nil
}

func queryList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
