// internal/server/handlers/report.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"kavach/internal/domain/report"
	"kavach/internal/geo"
	svc "kavach/internal/service/report"
)

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	lifecycle report.Lifecycle
	index     report.Index
	stats     *svc.StatsService
	validate  *validator.Validate

	defaultRadiusKm float64
	maxRadiusKm     float64
	nearbyLimit     int
	defaultWindow   time.Duration
}

// ReportHandlerConfig carries the query defaults and caps.
type ReportHandlerConfig struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	NearbyLimit     int
	DefaultWindow   time.Duration
}

// NewReportHandler creates a new report handler
func NewReportHandler(
	lifecycle report.Lifecycle,
	index report.Index,
	stats *svc.StatsService,
	cfg ReportHandlerConfig,
) *ReportHandler {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = 5.0
	}
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = 50.0
	}
	if cfg.NearbyLimit <= 0 {
		cfg.NearbyLimit = svc.DefaultNearbyLimit
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 7 * 24 * time.Hour
	}

	return &ReportHandler{
		lifecycle:       lifecycle,
		index:           index,
		stats:           stats,
		validate:        validator.New(),
		defaultRadiusKm: cfg.DefaultRadiusKm,
		maxRadiusKm:     cfg.MaxRadiusKm,
		nearbyLimit:     cfg.NearbyLimit,
		defaultWindow:   cfg.DefaultWindow,
	}
}

// CreateReport submits a new incident report
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	type createReportRequest struct {
		Category    string  `json:"category" validate:"required"`
		Description string  `json:"description" validate:"max=4000"`
		Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
		Lng         float64 `json:"lng" validate:"gte=-180,lte=180"`
		Urgent      bool    `json:"urgent"`
		Anonymous   bool    `json:"anonymous"`
		StationID   string  `json:"station_id" validate:"max=64"`
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid report", err)
		return
	}

	created, err := h.lifecycle.Create(r.Context(), report.Report{
		Category:    report.Category(req.Category),
		Description: req.Description,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Urgent:      req.Urgent,
		Anonymous:   req.Anonymous,
		StationID:   req.StationID,
	})
	if err != nil {
		respondWithDomainError(w, "Failed to create report", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GetReport returns a report by ID
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return
	}

	rep, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, "Failed to get report", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rep)
}

// GetNearbyReports returns reports within a radius of a coordinate
func (h *ReportHandler) GetNearbyReports(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")

	if latStr == "" || lngStr == "" {
		respondWithError(w, http.StatusBadRequest, "Missing location parameters", nil)
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid latitude", err)
		return
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid longitude", err)
		return
	}

	radiusKm := h.defaultRadiusKm
	if radiusStr := r.URL.Query().Get("radius_km"); radiusStr != "" {
		radiusKm, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid radius", err)
			return
		}
	}
	if radiusKm <= 0 || radiusKm > h.maxRadiusKm {
		respondWithError(w, http.StatusBadRequest, "Radius out of range", nil)
		return
	}

	var filter report.NearbyFilter
	if categoryStr := r.URL.Query().Get("category"); categoryStr != "" {
		category := report.Category(categoryStr)
		if !category.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Unknown category", nil)
			return
		}
		filter.Category = category
	}
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid since timestamp", err)
			return
		}
		filter.Since = since
	}

	limit := h.nearbyLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	nearby, err := h.index.FindNearby(r.Context(), lat, lng, radiusKm, filter, limit)
	if err != nil {
		respondWithDomainError(w, "Failed to find nearby reports", err)
		return
	}

	respondWithJSON(w, http.StatusOK, nearby)
}

// GetStats returns aggregate statistics over a trailing window
func (h *ReportHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	window := h.defaultWindow
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		parsed, err := time.ParseDuration(windowStr)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid window", err)
			return
		}
		window = parsed
	}

	stats, err := h.stats.Overview(r.Context(), window)
	if err != nil {
		respondWithDomainError(w, "Failed to compute statistics", err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// UpdateStatus applies a status transition to a report
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return
	}

	type updateStatusRequest struct {
		Status string `json:"status" validate:"required"`
		Note   string `json:"note" validate:"max=2000"`
		Author string `json:"author"`
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid status update", err)
		return
	}

	updated, audit, err := h.lifecycle.Transition(
		r.Context(),
		id,
		report.Status(req.Status),
		req.Note,
		report.AuthorKind(req.Author),
	)
	if err != nil {
		respondWithDomainError(w, "Failed to update status", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"report": updated,
		"update": audit,
	})
}

// UpdateCoordinate corrects a report's location
func (h *ReportHandler) UpdateCoordinate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return
	}

	type updateCoordinateRequest struct {
		Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
		Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	}

	var req updateCoordinateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid coordinate", err)
		return
	}

	updated, err := h.lifecycle.SetCoordinate(r.Context(), id, req.Lat, req.Lng)
	if err != nil {
		respondWithDomainError(w, "Failed to update coordinate", err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// DeleteReport removes a report and its owned records
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return
	}

	if err := h.lifecycle.Delete(r.Context(), id); err != nil {
		respondWithDomainError(w, "Failed to delete report", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUpdates returns a report's audit trail
func (h *ReportHandler) GetUpdates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing report ID", nil)
		return
	}

	updates, err := h.lifecycle.Updates(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, "Failed to get status updates", err)
		return
	}

	respondWithJSON(w, http.StatusOK, updates)
}

// respondWithDomainError maps domain errors to status codes
func respondWithDomainError(w http.ResponseWriter, message string, err error) {
	var invalidTransition *report.InvalidTransitionError
	var invalidCoordinate *geo.InvalidCoordinateError

	switch {
	case errors.Is(err, report.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Report not found", nil)
	case errors.Is(err, report.ErrStatusConflict):
		respondWithError(w, http.StatusConflict, "Report status changed concurrently", nil)
	case errors.As(err, &invalidTransition):
		respondWithError(w, http.StatusConflict, invalidTransition.Error(), nil)
	case errors.As(err, &invalidCoordinate):
		respondWithError(w, http.StatusBadRequest, invalidCoordinate.Error(), nil)
	default:
		respondWithError(w, http.StatusInternalServerError, message, err)
	}
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
