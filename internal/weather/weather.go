// Package weather proxies queries to an OpenWeatherMap compatible provider.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const (
	EndpointForecast = "forecast"
	EndpointCurrent  = "weather"
)

// ErrUpstream covers every provider failure: transport errors, timeouts,
// non-2xx answers and bodies that are not JSON.
var ErrUpstream = errors.New("weather provider error")

type UpstreamError struct {
	Endpoint string
	Status   int // 0 when no response was received
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("weather provider %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("weather provider %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

type Coords struct {
	Lat float64
	Lon float64
}

func (c Coords) values() url.Values {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	return v
}

type Request struct {
	Endpoint string
	Params   url.Values
}

// Provider fetches one raw JSON document from the weather API.
type Provider interface {
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}
