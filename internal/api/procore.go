package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func userParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if id == "" {
		return "", badRequest("user_id is required")
	}
	return id, nil
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	target, err := s.procore.AuthorizeURL(r.Context())
	if err != nil {
		s.writeError(w, r, "start Procore authorization", err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.procore.Callback(r.Context(), q.Get("code"), q.Get("state"), q.Get("error"))
	if err != nil {
		s.writeError(w, r, "complete Procore authorization", err)
		return
	}
	http.Redirect(w, r, s.procore.RedirectURL(res), http.StatusFound)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "refresh Procore token", err)
		return
	}
	expires, err := s.procore.RefreshToken(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "refresh Procore token", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProcoreStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore status", err)
		return
	}
	st, err := s.procore.Status(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "fetch Procore status", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "sync Procore projects", err)
		return
	}
	st, err := s.procore.Sync(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "sync Procore projects", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "disconnect Procore", err)
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if err := s.procore.Disconnect(r.Context(), userID, companyID); err != nil {
		s.writeError(w, r, "disconnect Procore", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLocalCompanies(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch companies", err)
		return
	}
	companies, err := s.procore.LocalCompanies(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "fetch companies", err)
		return
	}
	respondJSON(w, http.StatusOK, companies)
}

func (s *Server) handleSelectCompany(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "select company", err)
		return
	}
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID == "" {
		s.writeError(w, r, "select company", badRequest("company_id is required"))
		return
	}
	res, err := s.procore.SelectCompany(r.Context(), userID, companyID)
	if err != nil {
		s.writeError(w, r, "select company", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleProcoreMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore user", err)
		return
	}
	me, err := s.procore.Me(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "fetch Procore user", err)
		return
	}
	respondJSON(w, http.StatusOK, me)
}

func (s *Server) handleRemoteCompanies(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore companies", err)
		return
	}
	companies, err := s.procore.RemoteCompanies(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "fetch Procore companies", err)
		return
	}
	respondJSON(w, http.StatusOK, companies)
}

// company_id on the passthrough routes is a Procore company id.
func (s *Server) handleRemoteProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore projects", err)
		return
	}
	projects, err := s.procore.RemoteProjects(r.Context(), userID, r.URL.Query().Get("company_id"))
	if err != nil {
		s.writeError(w, r, "fetch Procore projects", err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleRemoteProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore project", err)
		return
	}
	project, err := s.procore.RemoteProject(r.Context(), userID, mux.Vars(r)["projectId"], r.URL.Query().Get("company_id"))
	if err != nil {
		s.writeError(w, r, "fetch Procore project", err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectTeam(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		s.writeError(w, r, "fetch Procore project team", err)
		return
	}
	team, err := s.procore.ProjectTeam(r.Context(), userID, mux.Vars(r)["projectId"], r.URL.Query().Get("company_id"))
	if err != nil {
		s.writeError(w, r, "fetch Procore project team", err)
		return
	}
	respondJSON(w, http.StatusOK, team)
}
