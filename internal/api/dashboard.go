package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/query"
)

// handleStats serves the dashboard header. projectId is optional; an
// unknown project simply has nothing to count.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	st, err := s.stats.Stats(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, "fetch dashboard stats", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	sum, err := s.summary.Summary(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		s.writeError(w, r, "fetch dashboard summary", err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.stores.Projects.List(r.Context(), "")
	if err != nil {
		s.writeError(w, r, "fetch projects", err)
		return
	}
	if companyID := strings.TrimSpace(r.URL.Query().Get("companyId")); companyID != "" {
		filtered := projects[:0]
		for _, p := range projects {
			if p.CompanyID == companyID {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.stores.Projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "fetch project", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// handleListObjects is read-only: objects come from drawing takeoff, not
// from the API.
func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	const op = "fetch objects"
	q := r.URL.Query()
	opts, err := query.ParseOptions(q)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	filter, err := query.ParseObjectFilter(q)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	objects, err := s.stores.Objects.List(r.Context(), opts.ProjectID)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusOK, query.Run(filter.Apply(objects), opts, nil))
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	obj, err := s.stores.Objects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "fetch object", err)
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	opts, err := query.ParseOptions(r.URL.Query())
	if err != nil {
		s.writeError(w, r, "fetch insights", err)
		return
	}
	insights, err := s.stores.Insights.List(r.Context(), opts.ProjectID)
	if err != nil {
		s.writeError(w, r, "fetch insights", err)
		return
	}
	respondJSON(w, http.StatusOK, query.Run(insights, opts, query.InsightDate))
}

// handleResolveInsight is idempotent: resolving twice succeeds both times.
func (s *Server) handleResolveInsight(w http.ResponseWriter, r *http.Request) {
	insight, err := s.stores.Insights.Update(r.Context(), mux.Vars(r)["id"], model.Resolve().Apply)
	if err != nil {
		s.writeError(w, r, "resolve insight", err)
		return
	}
	respondJSON(w, http.StatusOK, insight)
}

func (s *Server) handleQCLog(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	var buf bytes.Buffer
	if err := s.exporter.Export(r.Context(), projectID, &buf); err != nil {
		s.writeError(w, r, "export QC log", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="qc-log.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
