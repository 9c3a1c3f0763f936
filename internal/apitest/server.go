// Package apitest runs an in-memory task backend for tests. It speaks the
// same REST and WebSocket protocol as the real service: JWT bearer auth,
// task CRUD under /api, AI suggestions and a per-user push socket at
// /ws/{userID}.
package apitest

import (
	"bytes"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// RecordedRequest is one request the server received.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

// SuggestFunc produces the response to POST /ai/suggest.
type SuggestFunc func(description string) (status int, body any)

type failure struct {
	method string
	path   string
	status int
	body   string
}

type account struct {
	user     v1.User
	password string // bcrypt hash
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	echo   *echo.Echo
	tokens *tokenIssuer
	logger *zap.Logger

	mu         sync.Mutex
	accounts   map[string]*account // by email
	tasks      []v1.Task
	nextUserID int64
	nextTaskID int64
	requests   []RecordedRequest
	failures   []failure
	suggest    SuggestFunc
	sockets    map[int64][]*socket
	socketWait *sync.Cond
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs every request to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New starts a server and registers its shutdown with tb.Cleanup.
func New(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		tb.Fatalf("apitest: generate secret: %v", err)
	}

	s := &Server{
		tokens:     newTokenIssuer(secret, time.Hour),
		logger:     zap.NewNop(),
		accounts:   make(map[string]*account),
		nextUserID: 1,
		nextTaskID: 1,
		suggest:    DefaultSuggestion,
		sockets:    make(map[int64][]*socket),
	}
	s.socketWait = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.record)
	e.Use(s.injectFailures)
	s.echo = e
	s.registerRoutes()

	s.Server = httptest.NewServer(e)
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth)
	authed.GET("/tasks", s.handleListTasks)
	authed.POST("/tasks", s.handleCreateTask)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.PUT("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)
	authed.POST("/ai/suggest", s.handleSuggest)

	s.echo.GET("/ws/:userID", s.handleSocket)
}

// APIURL is the REST root, e.g. http://127.0.0.1:1234/api.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// WSURL is the push socket root, e.g. ws://127.0.0.1:1234/ws.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// Close disconnects all sockets and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for _, list := range s.sockets {
		for _, sock := range list {
			sock.close()
		}
	}
	s.sockets = make(map[int64][]*socket)
	s.mu.Unlock()
	s.Server.Close()
}

// Requests returns every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestCount returns how many requests were received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// FailNext makes the next request matching method and path (relative to
// the server root, e.g. "/api/tasks") answer with status and a raw body.
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, body: body})
}

// SetSuggest replaces the AI suggestion handler.
func (s *Server) SetSuggest(fn SuggestFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggest = fn
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body := readBody(req)

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        req.Method,
			Path:          req.URL.Path,
			Authorization: req.Header.Get(echo.HeaderAuthorization),
			RequestID:     req.Header.Get(echo.HeaderXRequestID),
			Body:          body,
		})
		s.mu.Unlock()

		start := time.Now()
		err := next(c)
		s.logger.Debug("apitest request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		s.mu.Lock()
		for i, f := range s.failures {
			if f.method == req.Method && f.path == req.URL.Path {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				s.mu.Unlock()
				return c.Blob(f.status, echo.MIMEApplicationJSON, []byte(f.body))
			}
		}
		s.mu.Unlock()
		return next(c)
	}
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, v1.ErrorResponse{Error: msg})
}

// readBody returns the request body and leaves it readable for handlers.
func readBody(req *http.Request) string {
	if req.Body == nil {
		return ""
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return string(data)
}
