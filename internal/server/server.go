// Package server exposes the deliberation pipeline over HTTP: conversation
// CRUD, the scrub-review flow, and a streaming message endpoint that relays
// pipeline progress as server-sent events.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/store"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// Server wires the council, the conversation store, and per-conversation
// review flows behind an echo instance.
type Server struct {
	cfg     model.ServerConfig
	council *council.Council
	store   *store.Store
	app     *echo.Echo
	address string

	mu    sync.Mutex
	flows map[string]*council.ReviewFlow
}

// New constructs the HTTP server with routing and middleware
func New(cfg model.ServerConfig, cn *council.Council, st *store.Store) (*Server, error) {
	if cn == nil || st == nil {
		return nil, errors.New("council and store must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:     cfg,
		council: cn,
		store:   st,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Port),
		flows:   make(map[string]*council.ReviewFlow),
	}
	srv.registerRoutes()
	return srv, nil
}

// Run starts the server and blocks until the context is cancelled. The
// message endpoint streams for the duration of a full deliberation turn, so
// no write timeout is set on the http.Server.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/api/conversations", s.handleList)
	s.app.POST("/api/conversations", s.handleCreate)
	s.app.GET("/api/conversations/:id", s.handleGet)
	s.app.POST("/api/conversations/:id/scrub", s.handleScrub)
	s.app.POST("/api/conversations/:id/message", s.handleMessage)
}

// flow returns the review flow for a conversation, creating it on first use
func (s *Server) flow(id string) *council.ReviewFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		f = council.NewReviewFlow()
		s.flows[id] = f
	}
	return f
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(c echo.Context) error {
	summaries, err := s.store.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if summaries == nil {
		summaries = []store.ConversationSummary{}
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleCreate(c echo.Context) error {
	conv, err := s.store.Create(newConversationID())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleGet(c echo.Context) error {
	conv, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, conv)
}

type scrubRequest struct {
	Content string `json:"content"`
}

type scrubResponse struct {
	Original  string `json:"original"`
	Scrubbed  string `json:"scrubbed"`
	Reasoning string `json:"reasoning,omitempty"`
	Changed   bool   `json:"changed"`
}

// handleScrub runs Phase 0 on a draft query and parks the result for
// review. The message endpoint then resolves it with the user's choice.
func (s *Server) handleScrub(c echo.Context) error {
	var req scrubRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	flow := s.flow(c.Param("id"))
	if err := flow.Begin(); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	result := s.council.Scrubber().ScrubQuery(c.Request().Context(), req.Content)
	if err := flow.Complete(result); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, scrubResponse{
		Original:  result.Original,
		Scrubbed:  result.Scrubbed,
		Reasoning: result.Reasoning,
		Changed:   result.Scrubbed != result.Original,
	})
}

type messageRequest struct {
	Content string `json:"content"`
	// AcceptScrubbed resolves a pending scrub review: true sends the
	// scrubbed text to the council, false the original. Required when a
	// review is pending, rejected otherwise.
	AcceptScrubbed *bool `json:"accept_scrubbed,omitempty"`
}

// handleMessage runs one full deliberation turn, streaming pipeline events
// as SSE. The turn is persisted before the final complete event, so a client
// that sees complete can rely on the conversation file reflecting it.
func (s *Server) handleMessage(c echo.Context) error {
	id := c.Param("id")

	var req messageRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	conv, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Resolve a pending scrub review, or take the content as-is. The
	// original text is what gets persisted either way.
	flow := s.flow(id)
	query := req.Content
	original := req.Content
	if pending, ok := flow.Pending(); ok {
		if req.AcceptScrubbed == nil {
			return echo.NewHTTPError(http.StatusConflict, "a scrub review is pending; accept_scrubbed is required")
		}
		original = pending.Original
		query, err = flow.Resolve(*req.AcceptScrubbed)
		if err != nil {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
	} else if req.AcceptScrubbed != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no scrub review is pending")
	}
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "server does not support streaming responses")
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	// Forward pipeline events as they happen, holding back complete until
	// the turn is durable.
	emitter := council.EmitterFunc(func(ev council.Event) {
		if ev.Type == council.EventComplete {
			return
		}
		if err := writeSSEEvent(writer, string(ev.Type), ev.Payload); err != nil {
			slog.Error("failed to write SSE event", "event", ev.Type, "err", err)
			return
		}
		flusher.Flush()
	})

	mem := council.Memory{
		SettledFacts:   conv.SettledFacts,
		PriorSynthesis: conv.PriorSynthesis(),
		Title:          conv.Title,
	}

	result, err := s.council.RunTurn(c.Request().Context(), query, mem, emitter)
	if err != nil {
		// The error event already went out on the stream
		slog.Error("deliberation turn failed", "conversation", id, "err", err)
		return nil
	}

	facts := store.BuildSettledFacts(result.Verification, conv)
	if err := s.store.AppendTurn(id, original, result.Message(), facts); err != nil {
		slog.Error("failed to persist turn", "conversation", id, "err", err)
		_ = writeSSEEvent(writer, string(council.EventError),
			council.ErrorPayload{Message: "turn completed but could not be persisted"})
		flusher.Flush()
		return nil
	}
	if result.Title != conv.Title {
		if err := s.store.UpdateTitle(id, result.Title); err != nil {
			slog.Warn("failed to update conversation title", "conversation", id, "err", err)
		}
	}

	if err := writeSSEEvent(writer, string(council.EventComplete), nil); err != nil {
		slog.Error("failed to write SSE event", "event", council.EventComplete, "err", err)
		return nil
	}
	flusher.Flush()
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
		}
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must contain a single JSON object")
	}
	return nil
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}

func newConversationID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("conv-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
