// Package auth runs the sign-in and sign-up flows and keeps the token the
// server hands back in the token file, where every later command finds it.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/events"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/notify"
	"github.com/document-locker/locker/internal/validation"
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("another sign-in request is in progress")

// Client is the part of *api.Client the session uses.
type Client interface {
	Login(ctx context.Context, in models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, in models.RegisterRequest) (string, error)
	SetToken(token string)
	Token() string
}

// Error is a failed submission. Message is what the user sees.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Options configures a Session.
type Options struct {
	Client Client

	// TokenPath is where the token is stored. Empty keeps it in memory only.
	TokenPath string

	Notifier *notify.Center
	EventBus *events.EventBus
	Logger   *logging.Logger
}

// Session holds the signed-in state.
type Session struct {
	client    Client
	tokenPath string
	notifier  *notify.Center
	bus       *events.EventBus
	logger    *logging.Logger

	mu    sync.Mutex
	busy  bool
	email string
}

// NewSession creates a session.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewCenter(notify.Config{EventBus: opts.EventBus, Logger: opts.Logger})
	}
	return &Session{
		client:    opts.Client,
		tokenPath: opts.TokenPath,
		notifier:  opts.Notifier,
		bus:       opts.EventBus,
		logger:    opts.Logger,
	}
}

// LoggedIn reports whether a token is available.
func (s *Session) LoggedIn() bool {
	return s.client.Token() != ""
}

// Email returns the address used for the last successful login.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Login validates the form, then posts it. Any 2xx counts as success; the
// token is stored only when the server sent one. Validation failures come
// back as validation.Errors and nothing is sent.
func (s *Session) Login(ctx context.Context, form validation.LoginForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()

	email := strings.TrimSpace(form.Email)
	resp, err := s.client.Login(ctx, models.LoginRequest{
		Email:      email,
		Password:   form.Password,
		RememberMe: form.RememberMe,
	})
	if err != nil {
		msg := failureMessage(err, "Login failed", "Login failed. Please try again.")
		s.logger.Warn().Err(err).Str("email", email).Msg("Login failed")
		s.notifier.Error("%s", msg)
		return &Error{Op: "login", Message: msg, Err: err}
	}

	if resp.Token != "" {
		s.client.SetToken(resp.Token)
		if s.tokenPath != "" {
			if err := config.WriteTokenFile(s.tokenPath, resp.Token); err != nil {
				s.logger.Error().Err(err).Msg("Failed to save token")
				s.notifier.Warning("Logged in, but the token could not be saved: %v", err)
			}
		}
	} else {
		s.logger.Debug().Msg("Login response carried no token")
	}

	s.mu.Lock()
	s.email = email
	s.mu.Unlock()

	s.bus.Publish(&events.AuthChangedEvent{
		BaseEvent: events.NewBase(events.EventAuthChanged),
		Email:     email,
		LoggedIn:  true,
	})
	s.notifier.Success("Login successful!")
	return nil
}

// Register validates the form, then creates the account.
func (s *Session) Register(ctx context.Context, form validation.RegisterForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()

	email := strings.TrimSpace(form.Email)
	_, err := s.client.Register(ctx, models.RegisterRequest{
		Name:     strings.TrimSpace(form.Name),
		Email:    email,
		Password: form.Password,
	})
	if err != nil {
		msg := failureMessage(err, "Registration failed", "Registration failed. Please try again.")
		s.logger.Warn().Err(err).Str("email", email).Msg("Registration failed")
		s.notifier.Error("%s", msg)
		return &Error{Op: "register", Message: msg, Err: err}
	}

	s.notifier.Success("Account created successfully! Please log in.")
	return nil
}

// Logout forgets the token locally and on disk.
func (s *Session) Logout() error {
	s.notifier.Info("Logging out...")
	s.client.SetToken("")

	s.mu.Lock()
	email := s.email
	s.email = ""
	s.mu.Unlock()

	var err error
	if s.tokenPath != "" {
		err = config.RemoveTokenFile(s.tokenPath)
	}
	s.bus.Publish(&events.AuthChangedEvent{
		BaseEvent: events.NewBase(events.EventAuthChanged),
		Email:     email,
		LoggedIn:  false,
	})
	return err
}

// failureMessage prefers the server's own message for HTTP errors.
func failureMessage(err error, httpFallback, otherFallback string) string {
	if he, ok := api.AsHTTPError(err); ok {
		if m := strings.TrimSpace(he.Message); m != "" {
			return m
		}
		return httpFallback
	}
	return otherFallback
}
