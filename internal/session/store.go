// Package session holds the signed-in user and their bearer token.
//
// A Store is created once per process. Load reads the persisted session at
// startup without touching the network; Login and Register replace it and
// Logout clears it. The Store is the client's TokenSource, so every API call
// sees the current token.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskdeck/internal/config"
	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// ErrNoAuthenticator is returned by Login and Register on a Store built
// without an Authenticator.
var ErrNoAuthenticator = errors.New("session: no authenticator configured")

// Session is the signed-in user.
type Session struct {
	UserID int64
	Name   string
	Email  string
	Token  config.Secret
}

// User returns the session's user record.
func (s Session) User() v1.User {
	return v1.User{ID: s.UserID, Name: s.Name, Email: s.Email}
}

func fromAuth(resp v1.AuthResponse) Session {
	return Session{
		UserID: resp.User.ID,
		Name:   resp.User.Name,
		Email:  resp.User.Email,
		Token:  config.Secret(resp.Token),
	}
}

// Authenticator exchanges credentials for a token. The API client
// implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (v1.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (v1.AuthResponse, error)
}

// Listener is called after the session changes. s is nil after a logout.
type Listener func(s *Session)

// Store owns the process-wide session.
type Store struct {
	storage Storage
	nav     Navigator
	logger  *logging.Logger

	mu        sync.RWMutex
	auth      Authenticator
	current   *Session
	listeners map[int]Listener
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets where the store sends the view after login and logout.
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.nav = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store. auth may be nil and set later with SetAuthenticator,
// which lets the API client take the Store as its TokenSource first.
func New(storage Storage, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		auth:      auth,
		nav:       NavigatorFunc(func(Route) {}),
		logger:    logging.Nop(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAuthenticator replaces the Authenticator.
func (s *Store) SetAuthenticator(auth Authenticator) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

// Load reads the persisted session. A token and user must both be present
// to count as signed in. The token is not checked against the server.
func (s *Store) Load() error {
	next, err := s.readPersisted()
	if err != nil {
		s.logger.Warn(context.Background(), "failed to read persisted session", zap.Error(err))
	}

	s.mu.Lock()
	changed := !sameSession(s.current, next)
	s.current = next
	s.mu.Unlock()

	if changed {
		s.notify(next)
	}
	return err
}

func (s *Store) readPersisted() (*Session, error) {
	tok, okTok, err := s.storage.Get(KeyToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	raw, okUser, err := s.storage.Get(KeyUser)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !okTok || tok == "" || !okUser {
		return nil, nil
	}

	var u v1.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Session{UserID: u.ID, Name: u.Name, Email: u.Email, Token: config.Secret(tok)}, nil
}

// Login signs in and persists the new session.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	auth := s.authenticator()
	if auth == nil {
		return Session{}, ErrNoAuthenticator
	}
	resp, err := auth.Login(ctx, email, password)
	if err != nil {
		s.logger.Info(ctx, "login rejected", zap.Error(err))
		return Session{}, err
	}
	return s.establish(ctx, resp)
}

// Register creates an account and persists its session.
func (s *Store) Register(ctx context.Context, name, email, password string) (Session, error) {
	auth := s.authenticator()
	if auth == nil {
		return Session{}, ErrNoAuthenticator
	}
	resp, err := auth.Register(ctx, name, email, password)
	if err != nil {
		s.logger.Info(ctx, "registration rejected", zap.Error(err))
		return Session{}, err
	}
	return s.establish(ctx, resp)
}

func (s *Store) authenticator() Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

func (s *Store) establish(ctx context.Context, resp v1.AuthResponse) (Session, error) {
	user, err := json.Marshal(resp.User)
	if err != nil {
		return Session{}, fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Put(map[string]string{KeyToken: resp.Token, KeyUser: string(user)}); err != nil {
		s.logger.Error(ctx, "failed to persist session", zap.Error(err))
		return Session{}, fmt.Errorf("persist session: %w", err)
	}

	sess := fromAuth(resp)
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	ctx = logging.WithUserID(ctx, sess.UserID)
	s.logger.Info(ctx, "signed in", zap.String("email", sess.Email))
	s.notify(&sess)
	s.nav.Navigate(RouteDashboard)
	return sess, nil
}

// Logout clears the session in memory and on disk. The in-memory session is
// cleared even when the storage delete fails; that error is returned.
func (s *Store) Logout() error {
	err := s.storage.Delete(KeyToken, KeyUser)
	if err != nil {
		s.logger.Error(context.Background(), "failed to clear persisted session", zap.Error(err))
	}

	s.mu.Lock()
	was := s.current
	s.current = nil
	s.mu.Unlock()

	if was != nil {
		s.logger.Info(logging.WithUserID(context.Background(), was.UserID), "signed out")
	}
	s.notify(nil)
	s.nav.Navigate(RouteLogin)
	return err
}

// Current returns a copy of the session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Token returns the bearer token. It implements client.TokenSource.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || !s.current.Token.IsSet() {
		return "", false
	}
	return s.current.Token.Value(), true
}

// IsAuthenticated reports whether a session is present.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// RequireSession returns the session or v1.ErrNotAuthenticated.
func (s *Store) RequireSession() (Session, error) {
	sess, ok := s.Current()
	if !ok {
		return Session{}, v1.ErrNotAuthenticated
	}
	return sess, nil
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// notify calls listeners in registration order, outside the lock. Each gets
// its own copy.
func (s *Store) notify(sess *Session) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		if sess == nil {
			fn(nil)
			continue
		}
		cp := *sess
		fn(&cp)
	}
}

func sameSession(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
