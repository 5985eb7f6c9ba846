package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"NetSentry/internal/config"
	"NetSentry/internal/engine"
	"NetSentry/internal/model"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// analystHeader carries the opaque analyst identity established by the
// external auth layer in front of this service.
const analystHeader = "X-Analyst-ID"

// Server exposes the engine over HTTP.
type Server struct {
	engine *engine.Engine
	stats  *engine.StatsAggregator
	cfg    config.ServerConfig
}

// NewServer creates a Server.
func NewServer(eng *engine.Engine, stats *engine.StatsAggregator, cfg config.ServerConfig) *Server {
	return &Server{engine: eng, stats: stats, cfg: cfg}
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/analyze-traffic", s.handleAnalyzeTraffic).Methods("POST", "OPTIONS")
	api.HandleFunc("/analyze-traffic/batch", s.handleAnalyzeBatch).Methods("POST", "OPTIONS")
	api.HandleFunc("/alerts", s.handleListAlerts).Methods("GET", "OPTIONS")
	api.HandleFunc("/alerts/{id:[0-9]+}", s.handleUpdateAlert).Methods("PUT", "OPTIONS")
	api.HandleFunc("/traffic/stats", s.handleTrafficStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/detection/threshold", s.handleGetThreshold).Methods("GET", "OPTIONS")
	api.HandleFunc("/detection/threshold", s.handleSetThreshold).Methods("PUT", "OPTIONS")

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+analystHeader)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) analyst(r *http.Request) string {
	if id := r.Header.Get(analystHeader); id != "" {
		return id
	}
	return s.cfg.DefaultAnalyst
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the NetSentry Threat Detection API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAnalyzeTraffic(w http.ResponseWriter, r *http.Request) {
	var obs model.TrafficObservation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.engine.ProcessObservation(r.Context(), &obs, s.analyst(r))
	if err != nil {
		log.Printf("Error analyzing network traffic: %v", err)
		writeError(w, http.StatusInternalServerError, "error analyzing network traffic")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var observations []*model.TrafficObservation
	if err := json.NewDecoder(r.Body).Decode(&observations); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	results, err := s.engine.ProcessBatch(r.Context(), observations, s.analyst(r))
	if err != nil {
		log.Printf("Error analyzing traffic batch: %v", err)
		writeError(w, http.StatusInternalServerError, "error analyzing traffic batch")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var filter model.AlertFilter

	if status := r.URL.Query().Get("status"); status != "" {
		parsed := model.AlertStatus(status)
		if !parsed.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status: "+status)
			return
		}
		filter.Status = parsed
	}
	if levelParam := r.URL.Query().Get("threat_level"); levelParam != "" {
		level, err := model.ParseThreatLevel(levelParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Level = &level
	}

	alerts, err := s.engine.ListAlerts(r.Context(), filter)
	if err != nil {
		log.Printf("Error listing alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "error listing alerts")
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

type updateAlertRequest struct {
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolution_notes"`
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	alert, err := s.engine.TransitionAlert(r.Context(), id, model.AlertStatus(req.Status), req.ResolutionNotes)
	switch {
	case errors.Is(err, model.ErrInvalidAlertStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "Alert not found")
	case err != nil:
		log.Printf("Error updating alert %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "error updating alert")
	default:
		writeJSON(w, http.StatusOK, alert)
	}
}

func (s *Server) handleTrafficStats(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "24h"
	}

	stats, err := s.stats.WindowStats(r.Context(), timeRange)
	switch {
	case errors.Is(err, model.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Printf("Error computing traffic stats: %v", err)
		writeError(w, http.StatusInternalServerError, "error computing traffic stats")
	default:
		writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"threshold": s.engine.Thresholds().Get()})
}

type setThresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req setThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.engine.Thresholds().Set(r.Context(), req.Threshold); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("Detection threshold updated to %.2f", req.Threshold)
	writeJSON(w, http.StatusOK, map[string]float64{"threshold": req.Threshold})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
