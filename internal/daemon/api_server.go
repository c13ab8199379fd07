package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsroom/internal/api"
	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/roles"
	"newsroom/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	previewTTL time.Duration

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		previewTTL: time.Duration(cfg.Workflow.PreviewTokenTTLHours) * time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", srv.handleStatus)
	mux.HandleFunc("GET /pipeline", srv.handlePipeline)
	mux.HandleFunc("POST /sweep", srv.handleSweep)
	mux.HandleFunc("GET /articles", srv.handleListArticles)
	mux.HandleFunc("POST /articles", srv.handleCreateArticle)
	mux.HandleFunc("GET /articles/{id}", srv.handleGetArticle)
	mux.HandleFunc("PATCH /articles/{id}", srv.handleUpdateArticle)
	mux.HandleFunc("GET /articles/{id}/versions", srv.handleVersions)
	mux.HandleFunc("POST /articles/{id}/{transition}", srv.handleTransition)
	mux.HandleFunc("GET /preview/{token}", srv.handlePreview)

	srv.server = &http.Server{
		Handler:           authMiddleware(strings.TrimSpace(cfg.Paths.APIToken), mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DBPath:         status.DBPath,
		LockFilePath:   status.LockFilePath,
		SweeperRunning: status.SweeperRunning,
		Articles:       api.FromStatusCounts(status.Articles),
	}
	if !status.LastSweep.IsZero() {
		payload.LastSweep = status.LastSweep.UTC().Format(time.RFC3339)
	}
	if status.LastSweepError != nil {
		payload.LastSweepError = status.LastSweepError.Error()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handlePipeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	view := s.daemon.Aggregator().Build(r.Context(), actor)
	s.writeJSON(w, http.StatusOK, api.FromPipelineView(view))
}

func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	published, err := s.daemon.Sweeper().RunOnce(r.Context())
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SweepResponse{Published: published})
}

func (s *apiServer) handleListArticles(w http.ResponseWriter, r *http.Request) {
	var filter articles.Filter
	for _, value := range r.URL.Query()["status"] {
		status, ok := articles.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter.OrderByUpdated = true

	records, err := s.daemon.store.List(r.Context(), filter)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArticleListResponse{Articles: api.FromArticles(records)})
}

func (s *apiServer) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if !actor.Role.AtLeast(roles.RoleWriter) {
		s.writeError(w, http.StatusForbidden, "role may not create drafts")
		return
	}

	var req api.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	authors := req.Authors
	if len(authors) == 0 {
		authors = []int64{actor.ID}
	}

	article, err := s.daemon.store.CreateDraft(r.Context(), articles.DraftInput{
		Title:     req.Title,
		Slug:      req.Slug,
		Dek:       req.Dek,
		BodyMD:    req.BodyMD,
		HeroImage: req.HeroImage,
		Authors:   authors,
		CreatedBy: actor.ID,
	})
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ArticleResponse{Article: api.FromArticle(article)})
}

func (s *apiServer) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	article, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	if article == nil {
		s.writeError(w, http.StatusNotFound, "article not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArticleResponse{Article: api.FromArticle(article)})
}

func (s *apiServer) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if !actor.Role.AtLeast(roles.RoleWriter) {
		s.writeError(w, http.StatusForbidden, "role may not edit articles")
		return
	}
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	var req api.UpdateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	article, err := s.daemon.store.UpdateContent(r.Context(), id, articles.ContentUpdate{
		Title:     req.Title,
		Slug:      req.Slug,
		Dek:       req.Dek,
		BodyMD:    req.BodyMD,
		HeroImage: req.HeroImage,
		Authors:   req.Authors,
	})
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArticleResponse{Article: api.FromArticle(article)})
}

func (s *apiServer) handleVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}
	versions, err := s.daemon.store.Versions(r.Context(), id)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VersionListResponse{Versions: api.FromVersions(versions)})
}

func (s *apiServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	name := r.PathValue("transition")
	if name == "preview" {
		s.handleMintPreview(w, r, actor, id)
		return
	}
	if name == "revert" {
		name = string(roles.TransitionRevert)
	}
	transition, known := roles.ParseTransition(name)
	if !known {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown transition %q", name))
		return
	}

	var req api.TransitionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	var publishAt *time.Time
	if strings.TrimSpace(req.PublishAt) != "" {
		parsed, err := time.Parse(time.RFC3339, req.PublishAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "publishAt must be RFC 3339")
			return
		}
		publishAt = &parsed
	}

	article, err := s.daemon.Engine().Apply(r.Context(), actor, transition, id, workflow.Request{PublishAt: publishAt})
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArticleResponse{Article: api.FromArticle(article)})
}

func (s *apiServer) handleMintPreview(w http.ResponseWriter, r *http.Request, actor articles.Actor, id int64) {
	if !actor.Role.AtLeast(roles.RoleWriter) {
		s.writeError(w, http.StatusForbidden, "role may not mint preview tokens")
		return
	}
	token, err := s.daemon.store.MintPreviewToken(r.Context(), id, actor.ID, s.previewTTL)
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.PreviewTokenResponse{
		Token:     token.Token,
		ArticleID: token.ArticleID,
		ExpiresAt: token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	article, err := s.daemon.store.ResolvePreviewToken(r.Context(), token, time.Now().UTC())
	if err != nil {
		s.writeWorkflowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArticleResponse{Article: api.FromArticle(article)})
}

// actor extracts the acting user from the X-Actor-Id and X-Actor-Role headers
// set by the authenticating front proxy.
func (s *apiServer) actor(w http.ResponseWriter, r *http.Request) (articles.Actor, bool) {
	idValue := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	roleValue := r.Header.Get("X-Actor-Role")

	id, err := strconv.ParseInt(idValue, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "missing or invalid X-Actor-Id header")
		return articles.Actor{}, false
	}
	role, ok := roles.ParseRole(roleValue)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "missing or invalid X-Actor-Role header")
		return articles.Actor{}, false
	}
	return articles.Actor{ID: id, Role: role}, true
}

func (s *apiServer) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid article id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeWorkflowError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch articles.KindOf(err) {
	case articles.KindNotFound:
		status = http.StatusNotFound
	case articles.KindForbidden:
		status = http.StatusForbidden
	case articles.KindInvalidTransition:
		status = http.StatusConflict
	case articles.KindValidation:
		status = http.StatusBadRequest
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
