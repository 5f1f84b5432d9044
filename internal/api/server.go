// Package api exposes the dashboard, the Procore integration, drawings and QC
// evidence over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/config"
	"github.com/dharsanguruparan/QCBoard/internal/drawings"
	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
	"github.com/dharsanguruparan/QCBoard/internal/query"
	"github.com/dharsanguruparan/QCBoard/internal/report"
	"github.com/dharsanguruparan/QCBoard/internal/signing"
	"github.com/dharsanguruparan/QCBoard/internal/stats"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// Procore is the integration surface the handlers call. *procore.Service
// satisfies it.
type Procore interface {
	AuthorizeURL(ctx context.Context) (string, error)
	Callback(ctx context.Context, code, state, errParam string) (procore.CallbackResult, error)
	RedirectURL(res procore.CallbackResult) string
	RefreshToken(ctx context.Context, userID string) (time.Time, error)
	Status(ctx context.Context, userID string) (procore.Status, error)
	Sync(ctx context.Context, userID string) (procore.Status, error)
	Disconnect(ctx context.Context, userID, companyID string) error
	LocalCompanies(ctx context.Context, userID string) ([]model.Company, error)
	SelectCompany(ctx context.Context, userID, companyID string) (procore.SelectResult, error)
	SyncHealth(ctx context.Context, userID string) (model.SyncHealth, string)

	Me(ctx context.Context, userID string) (procore.User, error)
	RemoteCompanies(ctx context.Context, userID string) ([]procore.RemoteCompany, error)
	RemoteProjects(ctx context.Context, userID, companyID string) ([]procore.RemoteProject, error)
	RemoteProject(ctx context.Context, userID, projectID, companyID string) (procore.RemoteProject, error)
	ProjectTeam(ctx context.Context, userID, projectID, companyID string) ([]procore.ProjectUser, error)
}

var _ Procore = (*procore.Service)(nil)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Stores   *storage.Stores
	Procore  Procore
	Drawings *drawings.Service
	Signer   *signing.Signer
	Now      func() time.Time
}

// Server exposes HTTP endpoints for the dashboard.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	stores   *storage.Stores
	stats    *stats.Aggregator
	summary  *stats.Summarizer
	procore  Procore
	drawings *drawings.Service
	signer   *signing.Signer
	exporter *report.Exporter
	now      func() time.Time
	handler  http.Handler
}

// New constructs a Server and its routes.
func New(d Deps) *Server {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:      d.Config,
		logger:   d.Logger,
		stores:   d.Stores,
		stats:    stats.NewAggregator(d.Stores, now),
		summary:  stats.NewSummarizer(d.Stores, d.Procore, now),
		procore:  d.Procore,
		drawings: d.Drawings,
		signer:   d.Signer,
		exporter: report.NewExporter(d.Stores, now),
		now:      now,
	}
	s.handler = requestID(accessLog(d.Logger, cors(d.Config.AllowedOrigins, s.routes())))
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("addr", s.cfg.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/reports/qc-log.xlsx", s.handleQCLog).Methods(http.MethodGet)

	api.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/dashboard/summary", s.handleSummary).Methods(http.MethodGet)

	api.HandleFunc("/projects/{id}/drawings", s.handleUploadDrawing).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/drawings", s.handleListDrawings).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/drawings/{drawingId}", s.handleGetDrawing).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/drawings/{drawingId}/signed-url", s.handleSignedURL).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/projects/{id}/drawings/{drawingId}/text", s.handleDrawingText).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/evidence", s.handleUploadEvidence).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/evidence", s.handleListEvidence).Methods(http.MethodGet)
	api.HandleFunc("/drawings/download", s.handleDownload).Methods(http.MethodGet)

	mountRecords(api, "/submittals", &resource[model.Submittal, model.SubmittalPatch]{
		srv: s, noun: "submittal", plural: "submittals", repo: s.stores.Submittals, dateOf: query.SubmittalDate,
	})
	mountRecords(api, "/rfis", &resource[model.RFI, model.RFIPatch]{
		srv: s, noun: "RFI", plural: "RFIs", repo: s.stores.RFIs, dateOf: query.RFIDate,
	})
	mountRecords(api, "/inspections", &resource[model.Inspection, model.InspectionPatch]{
		srv: s, noun: "inspection", plural: "inspections", repo: s.stores.Inspections, dateOf: query.InspectionDate,
	})

	api.HandleFunc("/objects", s.handleListObjects).Methods(http.MethodGet)
	api.HandleFunc("/objects/{id}", s.handleGetObject).Methods(http.MethodGet)
	api.HandleFunc("/insights", s.handleListInsights).Methods(http.MethodGet)
	api.HandleFunc("/insights/{id}/resolve", s.handleResolveInsight).Methods(http.MethodPatch)

	pc := api.PathPrefix("/procore").Subrouter()
	pc.HandleFunc("/oauth/authorize", s.handleAuthorize).Methods(http.MethodGet)
	pc.HandleFunc("/oauth/callback", s.handleCallback).Methods(http.MethodGet)
	pc.HandleFunc("/oauth/refresh", s.handleRefresh).Methods(http.MethodPost)
	pc.HandleFunc("/status", s.handleProcoreStatus).Methods(http.MethodGet)
	pc.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	pc.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	pc.HandleFunc("/companies/local", s.handleLocalCompanies).Methods(http.MethodGet)
	pc.HandleFunc("/company/select", s.handleSelectCompany).Methods(http.MethodPost)
	pc.HandleFunc("/me", s.handleProcoreMe).Methods(http.MethodGet)
	pc.HandleFunc("/companies", s.handleRemoteCompanies).Methods(http.MethodGet)
	pc.HandleFunc("/projects", s.handleRemoteProjects).Methods(http.MethodGet)
	pc.HandleFunc("/projects/{projectId}", s.handleRemoteProject).Methods(http.MethodGet)
	pc.HandleFunc("/projects/{projectId}/team", s.handleProjectTeam).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
