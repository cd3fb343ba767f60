package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Service struct {
	provider Provider
}

func NewService(p Provider) *Service {
	return &Service{provider: p}
}

// Current returns the provider's forecast document limited to a single time
// slot, unchanged.
func (s *Service) Current(ctx context.Context, c Coords) (json.RawMessage, error) {
	params := c.values()
	params.Set("cnt", "1")

	return s.provider.Fetch(ctx, Request{Endpoint: EndpointForecast, Params: params})
}

// Forecast returns the full multi-day series with at most one entry per
// calendar date.
func (s *Service) Forecast(ctx context.Context, c Coords) (json.RawMessage, error) {
	body, err := s.provider.Fetch(ctx, Request{Endpoint: EndpointForecast, Params: c.values()})
	if err != nil {
		return nil, err
	}

	deduped, err := DedupByDate(body)
	if err != nil {
		return nil, &UpstreamError{Endpoint: EndpointForecast, Err: err}
	}
	return deduped, nil
}

type CityReport struct {
	Current  json.RawMessage `json:"current"`
	Forecast json.RawMessage `json:"forecast"`
}

var ErrEmptyCity = errors.New("city is required")

// CityReport fetches current conditions and the forecast for a city name in
// parallel. Either failure fails the whole report.
func (s *Service) CityReport(ctx context.Context, city string) (CityReport, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return CityReport{}, ErrEmptyCity
	}

	var report CityReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		body, err := s.provider.Fetch(gctx, Request{Endpoint: EndpointCurrent, Params: url.Values{"q": {city}}})
		report.Current = body
		return err
	})
	g.Go(func() error {
		body, err := s.provider.Fetch(gctx, Request{Endpoint: EndpointForecast, Params: url.Values{"q": {city}}})
		report.Forecast = body
		return err
	})

	if err := g.Wait(); err != nil {
		return CityReport{}, err
	}
	return report, nil
}
