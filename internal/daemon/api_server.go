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

	"bobbin/internal/api"
	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/pipeline"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address required")
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/items", srv.guard(srv.handleItems))
	mux.HandleFunc("/api/status", srv.guard(srv.handleStatus))
	mux.HandleFunc("/api/queue", srv.guard(srv.handleQueue))
	mux.HandleFunc("/api/queue/retry", srv.guard(srv.handleQueueRetry))
	mux.HandleFunc("/api/collections", srv.guard(srv.handleCollections))
	mux.HandleFunc("/api/collections/", srv.guard(srv.handleCollectionItems))
	mux.HandleFunc("/api/groups/", srv.guard(srv.handleGroups))
	mux.HandleFunc("/api/settings", srv.guard(srv.handleSettings))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// guard enforces the optional bearer token on a handler. An empty configured
// token disables authentication and every request passes through.
func (s *apiServer) guard(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || bearer != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next(w, r)
	}
}

func (s *apiServer) start(ctx context.Context) error {
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
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", api.KindValidation)
		return
	}

	item, err := s.daemon.pipeline.Submit(r.Context(), pipeline.SubmitRequest{
		SourceURL:   req.SourceURL,
		Title:       req.Title,
		PublishedAt: req.PublishedAt,
		Body:        req.Body,
		GroupID:     req.GroupID,
	})
	if errors.Is(err, services.ErrDuplicate) {
		s.writeJSON(w, http.StatusOK, api.SubmitResponse{Status: "duplicate", Duplicate: true})
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{ItemID: item.ID, Status: string(item.Status)})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	status, err := s.daemon.pipeline.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStatus(status))
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		statuses, err := queryStatuses(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error(), api.KindValidation)
			return
		}
		items, err := s.daemon.pipeline.QueueItems(r.Context(), statuses...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromItems(items))
	case http.MethodDelete:
		statuses, err := queryStatuses(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error(), api.KindValidation)
			return
		}
		removed, err := s.daemon.store.Clear(r.Context(), statuses...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var ids []int64
	for _, value := range r.URL.Query()["id"] {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid item id %q", value), api.KindValidation)
			return
		}
		ids = append(ids, id)
	}
	retried, err := s.daemon.pipeline.RetryFailed(r.Context(), ids...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Retried: retried})
}

func (s *apiServer) handleCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	collections, err := s.daemon.pipeline.Collections(r.Context(), r.URL.Query().Get("group"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	wire := make([]api.Collection, len(collections))
	for i, coll := range collections {
		wire[i] = api.FromCollection(coll)
	}
	s.writeJSON(w, http.StatusOK, wire)
}

func (s *apiServer) handleCollectionItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/collections/")
	collectionID, verb, ok := strings.Cut(rest, "/")
	if !ok || collectionID == "" || verb != "items" {
		s.writeError(w, http.StatusNotFound, "not found", api.KindNotFound)
		return
	}
	items, err := s.daemon.pipeline.CollectionItems(r.Context(), collectionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromItems(items))
}

func (s *apiServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	groupID, verb, ok := strings.Cut(rest, "/")
	if !ok || groupID == "" {
		s.writeError(w, http.StatusNotFound, "not found", api.KindNotFound)
		return
	}

	switch verb {
	case "snapshot":
		var req api.SnapshotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", api.KindValidation)
			return
		}
		handoff, err := s.daemon.pipeline.RequestSnapshot(r.Context(), groupID, req.EpisodeID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SnapshotResponse{
			SnapshotID: handoff.SnapshotID,
			ItemCount:  handoff.ItemCount,
			LockToken:  handoff.LockToken,
		})
	case "release":
		var req api.ReleaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", api.KindValidation)
			return
		}
		if err := s.daemon.pipeline.ReleaseLock(r.Context(), groupID, req.Token); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
	default:
		s.writeError(w, http.StatusNotFound, "not found", api.KindNotFound)
	}
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all, err := s.daemon.settings.All(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SettingsPayload{Settings: all})
	case http.MethodPut:
		var req api.UpdateSettingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", api.KindValidation)
			return
		}
		if err := s.daemon.settings.Update(r.Context(), req.Key, req.Value); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func queryStatuses(r *http.Request) ([]store.Status, error) {
	var statuses []store.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := store.ParseStatus(trimmed)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", trimmed)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := api.KindForError(err)
	s.writeError(w, statusForKind(kind), err.Error(), kind)
}

func statusForKind(kind string) int {
	switch kind {
	case api.KindValidation:
		return http.StatusBadRequest
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindNotReady, api.KindLocked, api.KindCadenceDenied, api.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
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

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
