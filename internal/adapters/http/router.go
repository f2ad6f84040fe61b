package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/eval"
)

// TrafficConfig bounds concurrent load on the query pipeline.
type TrafficConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	AcquireTimeout time.Duration
}

type Router struct {
	service        ports.QueryService
	admission      ports.Admission
	evalHarness    *eval.Harness
	metricsHandler http.Handler
	traffic        TrafficConfig
}

func NewRouter(
	service ports.QueryService,
	admission ports.Admission,
	evalHarness *eval.Harness,
	metricsHandler http.Handler,
	traffic TrafficConfig,
) *Router {
	return &Router{
		service:        service,
		admission:      admission,
		evalHarness:    evalHarness,
		metricsHandler: metricsHandler,
		traffic:        traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/rag/query", rt.query)
	mux.HandleFunc("/v1/admission/check", rt.admissionCheck)
	mux.HandleFunc("/v1/usage", rt.usage)
	mux.HandleFunc("/v1/eval/run", rt.evalRun)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.traffic.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.AcquireTimeout)
	}
	if rt.traffic.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = requestIDFromContext(r.Context())
	}

	resp := rt.service.Query(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) admissionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Operation       string          `json:"operation"`
		EstimatedTokens int             `json:"estimated_tokens"`
		EstimatedCost   float64         `json:"estimated_cost"`
		Priority        domain.Priority `json:"priority"`
		RequesterID     string          `json:"requester_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Operation) == "" {
		writeError(w, http.StatusBadRequest, "operation is required")
		return
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if !req.Priority.Valid() {
		writeError(w, http.StatusBadRequest, "unknown priority")
		return
	}

	decision := rt.admission.ShouldProceed(
		r.Context(),
		req.Operation,
		req.EstimatedTokens,
		req.EstimatedCost,
		req.Priority,
		req.RequesterID,
	)
	writeJSON(w, http.StatusOK, decision)
}

func (rt *Router) usage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, rt.admission.Metrics())
}

func (rt *Router) evalRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if rt.evalHarness == nil {
		writeError(w, http.StatusNotFound, "evaluation is not enabled")
		return
	}

	requesterID := r.URL.Query().Get("requester_id")
	if requesterID == "" {
		requesterID = "eval:" + requestIDFromContext(r.Context())
	}

	report, err := rt.evalHarness.Run(r.Context(), requesterID)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
