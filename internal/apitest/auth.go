package apitest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

const userCtxKey = "apitest.user"

var errInvalidToken = errors.New("invalid token")

type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies HS256 session tokens.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newTokenIssuer(secret []byte, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: secret, ttl: ttl}
}

func (ti *tokenIssuer) issue(userID int64) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "apitest",
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return tok.SignedString(ti.secret)
}

func (ti *tokenIssuer) verify(raw string) (int64, error) {
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return ti.secret, nil
	})
	if err != nil {
		return 0, errInvalidToken
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return 0, errInvalidToken
	}
	return c.UserID, nil
}

// AddUser registers an account directly and returns it with a valid token.
func (s *Server) AddUser(name, email, password string) (v1.User, string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("apitest: hash password: " + err.Error())
	}

	s.mu.Lock()
	u := v1.User{ID: s.nextUserID, Name: name, Email: email}
	s.nextUserID++
	s.accounts[strings.ToLower(email)] = &account{user: u, password: string(hash)}
	s.mu.Unlock()

	tok, err := s.tokens.issue(u.ID)
	if err != nil {
		panic("apitest: issue token: " + err.Error())
	}
	return u, tok
}

func (s *Server) handleRegister(c echo.Context) error {
	var in v1.RegisterRequest
	if err := c.Bind(&in); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid input data")
	}
	if in.Name == "" || in.Email == "" || len(in.Password) < 6 {
		return jsonError(c, http.StatusBadRequest, "Name, email and a password of at least 6 characters are required")
	}

	s.mu.Lock()
	_, exists := s.accounts[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if exists {
		return jsonError(c, http.StatusConflict, "Email already registered")
	}

	u, tok := s.AddUser(in.Name, in.Email, in.Password)
	return c.JSON(http.StatusCreated, v1.AuthResponse{Token: tok, User: u})
}

func (s *Server) handleLogin(c echo.Context) error {
	var in v1.LoginRequest
	if err := c.Bind(&in); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid input data")
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.password), []byte(in.Password)) != nil {
		return jsonError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	tok, err := s.tokens.issue(acct.user.ID)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Could not generate token")
	}
	return c.JSON(http.StatusOK, v1.AuthResponse{Token: tok, User: acct.user})
}

// bearer returns the user id of a valid Authorization header.
func (s *Server) bearer(r *http.Request) (int64, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return 0, false
	}
	id, err := s.tokens.verify(strings.TrimPrefix(h, "Bearer "))
	return id, err == nil
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
			return jsonError(c, http.StatusUnauthorized, "Unauthorized")
		}
		id, ok := s.bearer(c.Request())
		if !ok {
			return jsonError(c, http.StatusUnauthorized, "Invalid or expired token")
		}
		c.Set(userCtxKey, id)
		return next(c)
	}
}

func currentUser(c echo.Context) int64 {
	id, _ := c.Get(userCtxKey).(int64)
	return id
}
