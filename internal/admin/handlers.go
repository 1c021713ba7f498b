package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/policy"
)

const maxCheckBody = 1 << 20

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Page":  "overview",
		"Stats": stats,
	}
	renderPage(w, "overview", data)
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Query(r.Context(), api.QueryFilter{})
	if err != nil {
		http.Error(w, "failed to query access log", http.StatusInternalServerError)
		return
	}

	// newest first, at most 100
	newest := make([]*api.AccessRecord, 0, 100)
	for i := len(records) - 1; i >= 0 && len(newest) < 100; i-- {
		newest = append(newest, records[i])
	}

	data := map[string]any{
		"Page":    "access",
		"Records": newest,
	}
	renderPage(w, "access", data)
}

func (s *Server) handleAccessStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.store.Subscribe(r.Context())
	defer cancel()

	flusher.Flush()
	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			row, err := renderRow(record)
			if err != nil {
				s.logger.Error("rendering access row", "id", record.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: access\ndata: %s\n\n", row)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	data := map[string]any{
		"Page":   "routes",
		"Routes": s.table.Describe(),
	}
	renderPage(w, "routes", data)
}

func (s *Server) handlePolicy(w http.ResponseWriter, _ *http.Request) {
	kind, source := s.policySource()
	data := map[string]any{
		"Page":   "policy",
		"Kind":   kind,
		"Source": source,
	}
	renderPage(w, "policy", data)
}

func (s *Server) policySource() (kind, source string) {
	switch e := s.engine.(type) {
	case *policy.YAMLEngine:
		out, err := yaml.Marshal(e.Rules())
		if err != nil {
			return "yaml", "error: " + err.Error()
		}
		return "yaml", string(out)
	case *policy.OPAEngine:
		return "rego", e.Source()
	case nil:
		return "none", ""
	default:
		return fmt.Sprintf("%T", e), ""
	}
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAPIAccess(w http.ResponseWriter, r *http.Request) {
	qf, err := parseQueryFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := s.store.Query(r.Context(), qf)
	if err != nil {
		http.Error(w, "failed to query access log", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*api.AccessRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAPIRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.table.Describe())
}

func (s *Server) handleAPICheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckBody)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	probe, err := dispatch.NewCheckRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	probe = probe.WithContext(r.Context())

	writeJSON(w, http.StatusOK, s.dispatcher.Check(probe).CheckResponse())
}

func (s *Server) handleAPIReload(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "no policy engine configured", http.StatusNotFound)
		return
	}
	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Error("policy reload failed", "error", err)
		http.Error(w, "reload failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Info("policy reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// parseQueryFilter reads an access query from URL parameters. Times are
// RFC 3339.
func parseQueryFilter(q url.Values) (api.QueryFilter, error) {
	qf := api.QueryFilter{
		Method:     q.Get("method"),
		PathPrefix: q.Get("path_prefix"),
		Outcome:    api.Outcome(q.Get("outcome")),
	}
	for _, t := range []struct {
		key string
		dst *time.Time
	}{{"since", &qf.Since}, {"until", &qf.Until}} {
		if v := q.Get(t.key); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return qf, fmt.Errorf("invalid %s: %w", t.key, err)
			}
			*t.dst = ts
		}
	}
	for _, n := range []struct {
		key string
		dst *int
	}{{"status", &qf.Status}, {"limit", &qf.Limit}, {"offset", &qf.Offset}} {
		if v := q.Get(n.key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil || i < 0 {
				return qf, fmt.Errorf("invalid %s %q", n.key, v)
			}
			*n.dst = i
		}
	}
	return qf, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return "bg-rose-950 text-rose-300"
	case code >= 400:
		return "bg-amber-950 text-amber-300"
	case code >= 300:
		return "bg-sky-950 text-sky-300"
	default:
		return "bg-emerald-950 text-emerald-300"
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func joinMethods(ms []string) string {
	if len(ms) == 0 {
		return "ANY"
	}
	return strings.Join(ms, ",")
}
