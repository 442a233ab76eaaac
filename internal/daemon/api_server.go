package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"marketpipe/internal/api"
	"marketpipe/internal/config"
	"marketpipe/internal/logging"
	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/workflow"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	service *api.RequestService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, service *api.RequestService, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.APIBind)
	if bind == "" {
		return nil, errors.New("api_bind is required")
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logging.WithComponent(logger, "api"),
		service: service,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/requests", srv.handleCreateRequest)
	mux.HandleFunc("GET /api/requests/{project}/{request}/status", srv.handleStatus)
	mux.HandleFunc("GET /api/requests/{project}/{request}/results", srv.handleResults)
	mux.HandleFunc("GET /api/requests/{project}/{request}/items", srv.handleItems)
	mux.HandleFunc("POST /api/requests/{project}/{request}/cancel", srv.handleCancel)
	mux.HandleFunc("GET /api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var input api.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	response, err := s.service.CreateRequest(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, response)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.Status(r.Context(), r.PathValue("project"), r.PathValue("request"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *apiServer) handleResults(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.Results(r.Context(), r.PathValue("project"), r.PathValue("request"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.ListItems(
		r.Context(),
		r.PathValue("project"),
		r.PathValue("request"),
		r.URL.Query().Get("stage"),
		r.URL.Query().Get("status"),
	)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.service.Cancel(r.Context(), r.PathValue("project"), r.PathValue("request"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response, err := s.service.Health(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, workflow.ErrCancelNotAllowed):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
