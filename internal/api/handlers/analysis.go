package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fundambush/internal/analyzer"
	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// maxExtrasBytes bounds the optional auxiliary-dataset body.
const maxExtrasBytes = 1 << 20

// AnalysisHandler serves on-demand analysis runs and stored reports.
type AnalysisHandler struct {
	service *analyzer.Service
	core    *analyzer.Analyzer
	logger  *logger.Logger
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(service *analyzer.Service, core *analyzer.Analyzer, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{service: service, core: core, logger: log}
}

// Analyze runs a full analysis for one stock.
// POST /api/analyze/{code} with an optional auxiliary-dataset JSON body.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "stock code is required")
		return
	}

	var extras *contracts.Extras
	if body, err := io.ReadAll(io.LimitReader(r.Body, maxExtrasBytes)); err == nil && len(body) > 0 {
		extras = contracts.ParseExtras(body)
	}

	result, err := h.service.AnalyzeStock(r.Context(), code, extras)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Warn("analysis request failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetReport returns the stored report for a stock.
// GET /api/report/{code}?date=2026-08-27 (default: today)
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "stock code is required")
		return
	}

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	result, err := h.service.Report(r.Context(), code, date)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetConfig reports the active strategy settings.
// GET /api/config
func (h *AnalysisHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prediction_threshold": h.core.Threshold(),
		"strategy_hash":        h.core.StrategyHash(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
