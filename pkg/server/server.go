// Package server exposes the routing engine over HTTP. The transport is thin
// plumbing: it validates the envelope, delegates to the engine, and maps
// errors to status codes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/zen-systems/routegate/pkg/backend"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/engine"
	"github.com/zen-systems/routegate/pkg/schema"
)

// Version is the service version reported by the health endpoint.
const Version = "0.1.0"

// warmupSystemPrompt primes both tier models with a trivial exchange.
const warmupSystemPrompt = "Reply with exactly two words: warmup ok."

// Server wires the engine and its collaborators to HTTP handlers.
type Server struct {
	engine   *engine.Engine
	policy   *config.Policy
	backends map[string]backend.Backend
}

// New creates a server over an engine, the routing policy, and the configured
// backends.
func New(eng *engine.Engine, pol *config.Policy, backends map[string]backend.Backend) *Server {
	return &Server{engine: eng, policy: pol, backends: backends}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("POST /warmup", s.handleWarmup)
	return mux
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req schema.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	resp, err := s.engine.Execute(r.Context(), &req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "routegate",
		"version": Version,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	catalog := make(map[string][]string)
	for name, b := range s.backends {
		models, err := b.ListModels(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("list models failed for %s: %v", name, err))
			return
		}
		catalog[name] = models
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	replies := make(map[string]string)
	for _, tier := range []schema.Tier{schema.TierCheap, schema.TierStrong} {
		target, ok := s.policy.Target(tier)
		if !ok {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("no model configured for tier %s", tier))
			return
		}
		b, ok := s.backends[target.Backend]
		if !ok {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("backend %q not configured", target.Backend))
			return
		}
		res, err := b.Chat(r.Context(), target.Name, warmupSystemPrompt, "warmup")
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("warmup failed for %s: %v", target.Name, err))
			return
		}
		replies[tier.String()+"_model"] = target.Name
		replies[tier.String()+"_reply"] = res.Answer
	}
	replies["status"] = "ok"
	writeJSON(w, http.StatusOK, replies)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
