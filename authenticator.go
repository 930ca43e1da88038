package projects

import (
	"context"
	"reflect"
	"time"

	"github.com/goliatone/go-errors"
)

// BearerTokenType is the token_type reported by the login endpoint
const BearerTokenType = "Bearer"

// LoginResult is what a successful login hands back to the client
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user,omitempty"`
}

type userHolder interface {
	User() *User
}

type Auther struct {
	provider     IdentityProvider
	signingKey   []byte
	tokenTTL     time.Duration
	issuer       string
	audience     []string
	logger       Logger
	tokenService TokenService
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenTTL(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		signingKey:   []byte(opts.GetSigningKey()),
		tokenTTL:     opts.GetTokenTTL(),
		audience:     opts.GetAudience(),
		issuer:       opts.GetIssuer(),
		logger:       defLogger{},
		tokenService: tokenService,
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenTTL,
		s.issuer,
		s.audience,
		s.logger,
	)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService swaps the token service, mostly used to pin the clock in tests
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// ValidateUser checks the credentials and returns the matching identity
func (s *Auther) ValidateUser(ctx context.Context, username, password string) (Identity, error) {
	identity, err := s.provider.VerifyIdentity(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, ErrInvalidCredentials
	}

	return identity, nil
}

// Login validates credentials and issues a session token
func (s *Auther) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	identity, err := s.ValidateUser(ctx, username, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": username,
			"error":      err.Error(),
		})
		return nil, err
	}

	token, expiresAt, err := s.GenerateJWT(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": username,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": username,
		"expires_at": expiresAt,
	})

	result := &LoginResult{
		AccessToken: token,
		TokenType:   BearerTokenType,
		ExpiresAt:   expiresAt,
	}

	if holder, ok := identity.(userHolder); ok {
		result.User = holder.User()
	}

	return result, nil
}

// GenerateJWT issues a token whose subject is the identity id
func (s *Auther) GenerateJWT(_ context.Context, identity Identity) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, ErrIdentityNotFound
	}
	return s.tokenService.Generate(identity)
}

// IdentityFromToken validates the token and loads the identity its
// subject points to. A subject that no longer exists is rejected.
func (s *Auther) IdentityFromToken(ctx context.Context, tokenString string) (Identity, AuthClaims, error) {
	claims, err := s.tokenService.Validate(tokenString)
	if err != nil {
		s.logger.Debug("IdentityFromToken validation failed", "error", err)
		return nil, nil, err
	}

	identity, err := s.provider.FindIdentityByID(ctx, claims.UserID())
	if err != nil {
		if errors.IsNotFound(err) || errors.Is(err, ErrIdentityNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		s.logger.Error("IdentityFromToken find identity by id", "error", err)
		return nil, nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, nil, ErrIdentityNotFound
	}

	return identity, claims, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}
