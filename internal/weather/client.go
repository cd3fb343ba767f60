package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/weatherhub/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxBodyBytes = 4 << 20

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	units   string
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   "metric",
	}
}

func (c *Client) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, span := observability.Tracer("weatherhub/weather").Start(ctx, "weather.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("weather.endpoint", req.Endpoint))

	body, err := c.fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failure")
		return nil, err
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	params := url.Values{}
	for k, v := range req.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)

	target := c.baseURL + "/" + req.Endpoint + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// the URL carries the api key, keep it out of the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &UpstreamError{Endpoint: req.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if !json.Valid(body) {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Err: errors.New("malformed json body")}
	}

	return json.RawMessage(body), nil
}
