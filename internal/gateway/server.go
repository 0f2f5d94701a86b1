package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pokescout/internal/domain"
	"pokescout/internal/queue"
	"pokescout/internal/session"
)

// ErrInvalidPort is returned when the gateway port is not in 0..65535.
var ErrInvalidPort = errors.New("gateway port must be 0-65535")

// Researcher answers research queries and exposes cache maintenance. The
// orchestrator implements it.
type Researcher interface {
	Research(ctx context.Context, query string) domain.ResearchResult
	Stats(ctx context.Context) (domain.CacheStats, error)
	SweepExpired(ctx context.Context) (int, error)
}

// SessionStore persists chat sessions. session.Store implements it.
type SessionStore interface {
	Create(ctx context.Context, title string) (*domain.ChatSession, error)
	Get(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	List(ctx context.Context) ([]domain.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, role domain.MessageRole, content string, metadata map[string]any) (*domain.ChatMessage, error)
	Messages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	Delete(ctx context.Context, sessionID string) error
}

// Server is the HTTP/WebSocket API over the research service. Turns within
// one chat session are serialized through the session queue; different
// sessions run concurrently.
type Server struct {
	cfg        *domain.GatewayConfig
	researcher Researcher
	sessions   SessionStore
	turns      *queue.SessionQueue
	logger     *slog.Logger

	server      *http.Server
	addr        string
	addrMu      sync.RWMutex
	listenErr   error
	listenErrMu sync.Mutex
	listener    net.Listener
}

// NewServer builds the gateway. researcher must not be nil; sessions may be
// nil, which disables the session routes. Port 0 means pick a random port.
func NewServer(cfg *domain.GatewayConfig, researcher Researcher, sessions SessionStore, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = &domain.GatewayConfig{Port: 5002}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	if researcher == nil {
		return nil, errors.New("gateway: researcher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		researcher: researcher,
		sessions:   sessions,
		turns:      queue.NewSessionQueue(),
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/research", s.handleResearch)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/cleanup", s.handleCacheCleanup)
	if sessions != nil {
		mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
		mux.HandleFunc("GET /api/sessions", s.handleListSessions)
		mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleSessionMessages)
		mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSessionChat)
		mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	}
	mux.HandleFunc("GET /ws", s.handleWS)

	s.server = &http.Server{
		Handler:           BearerAuth(cfg.AuthToken)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Addr returns the bound address after Run has started. Empty before Run.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// ListenErr returns the error from the initial Listen in Run(), if any.
func (s *Server) ListenErr() error {
	s.listenErrMu.Lock()
	defer s.listenErrMu.Unlock()
	return s.listenErr
}

// Handler returns the HTTP handler used by the server. For testing without binding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// netListen is the function used to listen; tests may replace it to force Listen errors.
var netListen = func(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// Run listens on the configured port and serves until shutdown is closed.
// Returns nil on clean shutdown.
func (s *Server) Run(shutdown <-chan struct{}) error {
	addr := ":" + strconv.Itoa(s.cfg.Port)
	ln, err := netListen("tcp", addr)
	if err != nil {
		s.listenErrMu.Lock()
		s.listenErr = err
		s.listenErrMu.Unlock()
		return err
	}
	s.addrMu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(ln)
	}()

	<-shutdown
	s.turns.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = serverShutdown(s.server, ctx)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// serverShutdown is the function used to shut down the server; tests may replace it.
var serverShutdown = func(srv *http.Server, ctx context.Context) error {
	return srv.Shutdown(ctx)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// researchRequest is the body of POST /api/research.
type researchRequest struct {
	Query string `json:"query"`
}

// handleResearch runs a one-shot research query outside any chat session.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	result := s.researcher.Research(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.researcher.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cache stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.researcher.SweepExpired(r.Context())
	if err != nil {
		s.logger.Error("cache cleanup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cache cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// createSessionRequest is the body of POST /api/sessions.
type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	sess, err := s.sessions.Create(r.Context(), req.Title)
	if err != nil {
		s.logger.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session create failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.logger.Error("session list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session list failed")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.sessions.Messages(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session messages failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "session messages failed")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// chatRequest is the body of POST /api/sessions/{id}/messages.
type chatRequest struct {
	Content string `json:"content"`
}

// chatResponse pairs the stored assistant message with the full research result.
type chatResponse struct {
	Message *domain.ChatMessage   `json:"message"`
	Result  domain.ResearchResult `json:"result"`
}

// handleSessionChat appends a user message, runs research, and appends the
// answer. The whole turn goes through the session queue so concurrent posts
// to one session are serialized in arrival order.
func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	var resp chatResponse
	err := s.turns.Do(r.Context(), id, func() error {
		ctx := r.Context()
		if _, err := s.sessions.AppendMessage(ctx, id, domain.RoleUser, req.Content, nil); err != nil {
			return err
		}
		result := s.researcher.Research(ctx, req.Content)
		meta := map[string]any{
			"reasoning":       result.Reasoning,
			"success":         result.Success,
			"iterations_used": result.Iterations,
			"cached":          result.Cached,
		}
		msg, err := s.sessions.AppendMessage(ctx, id, domain.RoleAssistant, result.Results, meta)
		if err != nil {
			return err
		}
		resp = chatResponse{Message: msg, Result: result}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
		default:
			s.logger.Error("chat turn failed", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "chat turn failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session delete failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "session delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// JSON helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
