package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/geocoder89/weatherhub/internal/weather"
	"github.com/gin-gonic/gin"
)

type WeatherService interface {
	Current(ctx context.Context, c weather.Coords) (json.RawMessage, error)
	Forecast(ctx context.Context, c weather.Coords) (json.RawMessage, error)
	CityReport(ctx context.Context, city string) (weather.CityReport, error)
}

type WeatherHandler struct {
	svc WeatherService
	log *slog.Logger
}

func NewWeatherHandler(svc WeatherService, log *slog.Logger) *WeatherHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WeatherHandler{svc: svc, log: log}
}

// Coordinates arrive as strings so that 0 passes "required".
type CoordsQuery struct {
	Lat string `form:"lat" binding:"required,latitude"`
	Lon string `form:"lon" binding:"required,longitude"`
}

func (q CoordsQuery) coords() (weather.Coords, error) {
	lat, err := strconv.ParseFloat(q.Lat, 64)
	if err != nil {
		return weather.Coords{}, err
	}
	lon, err := strconv.ParseFloat(q.Lon, 64)
	if err != nil {
		return weather.Coords{}, err
	}
	return weather.Coords{Lat: lat, Lon: lon}, nil
}

type CityRequest struct {
	City string `json:"city" binding:"required"`
}

func (h *WeatherHandler) Current(ctx *gin.Context) {
	c, ok := h.bindCoords(ctx)
	if !ok {
		return
	}

	body, err := h.svc.Current(ctx.Request.Context(), c)
	if err != nil {
		h.upstreamFailed(ctx, "current", err)
		return
	}

	RespondRawJSONWithETag(ctx, http.StatusOK, body)
}

func (h *WeatherHandler) Forecast(ctx *gin.Context) {
	c, ok := h.bindCoords(ctx)
	if !ok {
		return
	}

	body, err := h.svc.Forecast(ctx.Request.Context(), c)
	if err != nil {
		h.upstreamFailed(ctx, "forecast", err)
		return
	}

	RespondRawJSONWithETag(ctx, http.StatusOK, body)
}

// City serves POST /get, the combined current + forecast lookup by city name.
func (h *WeatherHandler) City(ctx *gin.Context) {
	var req CityRequest

	if !BindJSON(ctx, &req) {
		return
	}

	report, err := h.svc.CityReport(ctx.Request.Context(), req.City)
	if err != nil {
		if errors.Is(err, weather.ErrEmptyCity) {
			RespondBadRequest(ctx, "City is required", nil)
			return
		}
		h.upstreamFailed(ctx, "city", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, report)
}

func (h *WeatherHandler) bindCoords(ctx *gin.Context) (weather.Coords, bool) {
	var q CoordsQuery

	if !BindQuery(ctx, &q) {
		return weather.Coords{}, false
	}

	c, err := q.coords()
	if err != nil {
		RespondBadRequest(ctx, "Invalid query parameters", gin.H{"reason": "lat and lon must be numbers"})
		return weather.Coords{}, false
	}
	return c, true
}

func (h *WeatherHandler) upstreamFailed(ctx *gin.Context, op string, err error) {
	h.log.WarnContext(ctx.Request.Context(), "weather_upstream_failed",
		"op", op,
		"err", err,
		"circuit_open", errors.Is(err, weather.ErrCircuitOpen),
	)
	RespondUpstream(ctx)
}
