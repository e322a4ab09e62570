// Package identity is the email/password identity provider. Access tokens
// are HS256 JWTs; each carries a session id that must still be present in
// the session store for the token to be accepted, so signing out takes
// effect immediately.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"myhomeneeds/apperr"
	"myhomeneeds/models"
	"myhomeneeds/store"
)

const minPasswordLen = 6

// Sessions records which token ids are live.
type Sessions interface {
	Put(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Exists(ctx context.Context, tokenID string) (bool, error)
	Delete(ctx context.Context, tokenID string) error
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string          `json:"token"`
	Identity  models.Identity `json:"identity"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Change is delivered to OnChange listeners. Identity is nil after sign out.
type Change struct {
	UserID   string
	Identity *models.Identity
}

type Provider struct {
	store    store.Store
	sessions Sessions
	secret   []byte
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	listeners map[int]func(Change)
	next      int
}

func NewProvider(st store.Store, sessions Sessions, secret []byte, ttl time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:     st,
		sessions:  sessions,
		secret:    secret,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(Change)),
	}
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.New(apperr.Validation, "identity", "a valid email address is required")
	}
	return email, nil
}

func (p *Provider) findUser(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	err := p.store.Query(ctx, store.Query{
		Collection: store.Users,
		Filters:    []store.Filter{store.Eq("email", email)},
		Limit:      1,
	}, &users)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// SignUp registers a new identity and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (Session, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, apperr.Newf(apperr.Validation, "identity.SignUp", "password must be at least %d characters", minPasswordLen)
	}

	existing, err := p.findUser(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, apperr.New(apperr.Conflict, "identity.SignUp", "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "identity.SignUp", err)
	}
	now := p.now()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastLogin:    now,
	}
	if _, err := p.store.Create(ctx, store.Users, user); err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			return Session{}, apperr.New(apperr.Conflict, "identity.SignUp", "email already registered")
		}
		return Session{}, err
	}
	return p.issue(ctx, user)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return Session{}, err
	}
	user, err := p.findUser(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, apperr.New(apperr.Unauthenticated, "identity.SignIn", "invalid email or password")
	}

	if err := p.store.Update(ctx, store.Users, user.ID, map[string]any{"lastLogin": p.now()}); err != nil {
		p.logger.Warn("record last login failed", slog.String("userId", user.ID), slog.String("error", err.Error()))
	}
	return p.issue(ctx, *user)
}

func (p *Provider) issue(ctx context.Context, user models.User) (Session, error) {
	now := p.now()
	expires := now.Add(p.ttl)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "identity.issue", err)
	}
	if err := p.sessions.Put(ctx, claims.ID, user.ID, p.ttl); err != nil {
		return Session{}, err
	}

	id := models.Identity{UserID: user.ID, Email: user.Email}
	p.notify(Change{UserID: user.ID, Identity: &id})
	return Session{Token: token, Identity: id, ExpiresAt: expires}, nil
}

func (p *Provider) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.Unauthenticated, "identity", "session expired")
		}
		return nil, apperr.New(apperr.Unauthenticated, "identity", "invalid token")
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "identity", "invalid token")
	}
	return claims, nil
}

// SignOut ends the session behind token.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return err
	}
	if err := p.sessions.Delete(ctx, claims.ID); err != nil {
		return err
	}
	p.notify(Change{UserID: claims.UserID})
	return nil
}

// Current returns the identity behind token, or nil for an empty token.
func (p *Provider) Current(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	live, err := p.sessions.Exists(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, apperr.New(apperr.Unauthenticated, "identity", "session ended")
	}
	return &models.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// OnChange registers fn for every sign in and sign out. The returned func
// removes it.
func (p *Provider) OnChange(fn func(Change)) func() {
	p.mu.Lock()
	key := p.next
	p.next++
	p.listeners[key] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, key)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(c Change) {
	p.mu.Lock()
	fns := make([]func(Change), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
