package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/validation"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Claims are carried in tokens issued by /login.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFrom returns the claims stored by the auth middleware, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

var (
	errUserExists         = errors.New("user already exists")
	errInvalidCredentials = errors.New("invalid credentials")
)

type user struct {
	name string
	hash []byte
}

// userStore keeps registered accounts in memory. Emails are compared
// case-insensitively.
type userStore struct {
	mu    sync.RWMutex
	users map[string]user
	cost  int
}

func newUserStore(cost int) *userStore {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &userStore{users: make(map[string]user), cost: cost}
}

func (s *userStore) add(name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	k := strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[k]; ok {
		return errUserExists
	}
	s.users[k] = user{name: name, hash: hash}
	return nil
}

// check returns the account name when the password matches. known is
// false when the email was never registered.
func (s *userStore) check(email, password string) (name string, known bool, err error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return "", false, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return "", true, errInvalidCredentials
	}
	return u.name, true, nil
}

func (s *userStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// tokenIssuer signs and verifies HS256 tokens.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// newTokenIssuer uses secret, or a random one when empty. Random secrets
// invalidate every token on restart.
func newTokenIssuer(secret string) (*tokenIssuer, bool, error) {
	if secret != "" {
		return &tokenIssuer{secret: []byte(secret), now: time.Now}, false, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return &tokenIssuer{secret: b, now: time.Now}, true, nil
}

func (t *tokenIssuer) issue(email, name string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "locker-server",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *tokenIssuer) verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireToken rejects requests without a valid bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, err := s.tokens.verify(tok)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Rejected token")
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims)))
	})
}

// handleLogin: registered users are checked against their bcrypt hash.
// Unknown emails are accepted in demo mode.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		s.metrics.authAttempts.WithLabelValues("rejected").Inc()
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	name, known, err := s.users.check(email, req.Password)
	switch {
	case err == nil:
	case !known && s.cfg.DemoLogin:
		name = ""
	default:
		s.metrics.authAttempts.WithLabelValues("rejected").Inc()
		s.logger.Warn().Str("email", email).Msg("Login rejected")
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ttl := constants.TokenTTL
	if req.RememberMe {
		ttl = constants.RememberMeTokenTTL
	}
	token, err := s.tokens.issue(email, name, ttl)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign token")
		writeMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	s.metrics.authAttempts.WithLabelValues("accepted").Inc()
	s.logger.Info().Str("email", email).Bool("registered", known).Msg("Login accepted")
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, Message: "Login successful"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	name, email := strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)

	switch {
	case len(name) < constants.MinNameLength:
		writeMessage(w, http.StatusBadRequest, "Name must be at least 2 characters long")
		return
	case !validation.IsValidEmail(email):
		writeMessage(w, http.StatusBadRequest, "Please enter a valid email address")
		return
	case len(req.Password) < constants.MinPasswordLength:
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	if err := s.users.add(name, email, req.Password); err != nil {
		if errors.Is(err, errUserExists) {
			writeMessage(w, http.StatusConflict, "User already exists")
			return
		}
		s.logger.Error().Err(err).Msg("Registration failed")
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	s.metrics.registeredUser.Set(float64(s.users.count()))
	s.logger.Info().Str("email", email).Msg("User registered")
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	c := ClaimsFrom(r.Context())
	if c == nil {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	name := c.Name
	if name == "" {
		name = strings.SplitN(c.Email, "@", 2)[0]
	}
	writeJSON(w, http.StatusOK, models.UserProfile{Name: name, Email: c.Email})
}
