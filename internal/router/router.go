package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Capeo/SupplAI/internal/handlers"
	"github.com/Capeo/SupplAI/internal/middleware"
	"github.com/Capeo/SupplAI/internal/utils"
)

func NewRouter(analyses *handlers.AnalysisHandler, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Analysis endpoints
	api.HandleFunc("/analyses", analyses.CreateAnalysis).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/analyses/stream", analyses.StreamAnalysis).Methods(http.MethodPost, http.MethodOptions)

	return r
}
