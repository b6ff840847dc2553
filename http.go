package domresolve

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domresolve/selector"
)

// RegisterHTTP registers diagnostic endpoints on a chi router. These expose
// the same operations as the MCP tools for curl-based inspection.
func (rs *Resolver) RegisterHTTP(r chi.Router) {
	r.Post("/api/v1/resolve/{intent}", rs.handleResolve)
	r.Post("/api/v1/scope/{scope}", rs.handleEnterScope)
	r.Get("/api/v1/selectors", rs.handleSelectors)
	r.Get("/api/v1/drift", rs.handleDrift)
	r.Post("/api/v1/adapt", rs.handleAdapt)
	r.Get("/api/v1/stats", rs.handleStats)
	r.Get("/api/v1/failures", rs.handleFailures)
}

func (rs *Resolver) handleResolve(w http.ResponseWriter, r *http.Request) {
	intent := chi.URLParam(r, "intent")
	res, err := rs.Resolve(r.Context(), intent)
	if err != nil {
		var notReg *selector.NotRegisteredError
		var mismatch *selector.ScopeMismatchError
		switch {
		case errors.As(err, &notReg):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &mismatch):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			rs.logger.Error("http: resolve failed", "intent", intent, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := map[string]any{"result": res}
	if res.Element != nil {
		if text, terr := res.Element.Text(r.Context()); terr == nil {
			resp["text"] = text
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (rs *Resolver) handleEnterScope(w http.ResponseWriter, r *http.Request) {
	scopeID := chi.URLParam(r, "scope")
	gen := rs.EnterScope(scopeID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"scope": scopeID, "generation": gen})
}

func (rs *Resolver) handleSelectors(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"selectors": rs.Definitions()})
}

func (rs *Resolver) handleDrift(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"pairs": rs.DriftReport()})
}

func (rs *Resolver) handleAdapt(w http.ResponseWriter, r *http.Request) {
	rs.AdaptNow(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (rs *Resolver) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := rs.Stats(r.Context())
	if err != nil {
		rs.logger.Error("http: stats failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (rs *Resolver) handleFailures(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	fcs, err := rs.Failures(r.Context(), r.URL.Query().Get("intent"), limit)
	if err != nil {
		rs.logger.Error("http: failures query failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"failures": fcs})
}
