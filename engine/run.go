// Copyright 2025 Foundry
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"foundry/platform/engine/llm"
	"foundry/platform/providers/registry"
	"foundry/platform/shared/logger"
)

// Server fronts the workflow engine with the local submission endpoint.
type Server struct {
	engine    *WorkflowEngine
	providers *registry.ProviderSet
	metrics   *Metrics
	log       *logger.Logger
}

// NewServer assembles the HTTP surface over an engine.
func NewServer(engine *WorkflowEngine, providers *registry.ProviderSet) *Server {
	return &Server{
		engine:    engine,
		providers: providers,
		metrics:   engine.metrics,
		log:       logger.New("engine"),
	}
}

// Router builds the service routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/metrics", s.metricsHandler).Methods("GET") // JSON metrics (legacy)
	r.Handle("/prometheus", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/api/v1/submit", s.submitHandler).Methods("POST")
	r.HandleFunc("/api/v1/outcomes/{id}", s.outcomeHandler).Methods("GET")
	r.HandleFunc("/api/v1/providers/status", s.providerStatusHandler).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// submitRequest is the submission boundary payload.
type submitRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	Subject    string `json:"subject"`
	Payload    string `json:"payload"`
	DeadlineMS int64  `json:"deadline_ms,omitempty"` // Relative deadline for this run
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if body.Subject == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "subject is required"})
		return
	}

	req := WorkflowRequest{
		ID:          body.RequestID,
		Subject:     body.Subject,
		Payload:     body.Payload,
		SubmittedAt: time.Now().UTC(),
	}
	if body.DeadlineMS > 0 {
		req.Deadline = req.SubmittedAt.Add(time.Duration(body.DeadlineMS) * time.Millisecond)
	}

	outcome, fresh, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrAggregationImpossible) {
			s.log.Error(req.ID, "aggregation impossible", map[string]interface{}{"subject": req.Subject})
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.log.Info(outcome.RequestID, "request routed", map[string]interface{}{
		"route":       string(outcome.Route),
		"competitive": outcome.Decision.Competitive,
		"confidence":  outcome.Decision.Confidence,
		"replayed":    !fresh,
	})

	status := http.StatusCreated
	if !fresh {
		status = http.StatusOK
	}
	writeJSON(w, status, outcome)
}

func (s *Server) outcomeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	outcome, ok := s.engine.Outcome(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no outcome for request " + id})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) providerStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.Status())
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run is the service entry point: load configuration, build the provider set
// and engine, and serve until the process exits. Missing model credentials
// abort startup here.
func Run() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	model, err := llm.NewAzureClient(cfg.Model)
	if err != nil {
		log.Fatalf("startup failed: model client: %v", err)
	}

	providers := registry.Build(cfg.Providers, registry.Options{RedisAddr: cfg.RedisAddr})

	audit := NewAuditLogger(cfg.Database)
	defer audit.Close()

	engine, err := NewWorkflowEngine(EngineConfig{
		Providers:       providers,
		Model:           model,
		Agents:          DefaultAgents(model, time.Duration(cfg.Policy.RetryBackoff)),
		Weights:         cfg.Policy.Weights,
		Threshold:       cfg.Policy.Threshold,
		Penalty:         cfg.Policy.IncompletePenalty,
		AgentTimeout:    time.Duration(cfg.Policy.AgentTimeout),
		RequestDeadline: time.Duration(cfg.Policy.RequestDeadline),
		Audit:           audit,
	})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	server := NewServer(engine, providers)
	log.Printf("Foundry workflow engine listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router()))
}
