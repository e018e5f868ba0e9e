// Package auth issues and verifies account credentials: bcrypt password
// hashes, short-lived JWT access tokens and opaque, server-stored
// refresh tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tontyoutoure/xianqi/internal/database"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID   int64
	Username string
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service implements register/login/refresh against the user store.
type Service struct {
	db            *database.DB
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// New returns an auth service signing access tokens with secret.
func New(db *database.DB, secret string, accessExpiry, refreshExpiry time.Duration) *Service {
	return &Service{
		db:            db,
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (database.User, error) {
	if username == "" || password == "" {
		return database.User{}, fmt.Errorf("%w: empty username or password", ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.db.CreateUser(ctx, username, string(hash))
}

// Login verifies the password and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(ctx, user)
}

// Refresh exchanges a live refresh token for a fresh pair, revoking the
// old token (single use).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.db.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	user, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.db.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, user)
}

// VerifyAccess parses and validates an access token.
func (s *Service) VerifyAccess(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	registered, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(registered.Subject, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	username := ""
	if len(registered.Audience) > 0 {
		username = registered.Audience[0]
	}
	return Claims{UserID: userID, Username: username}, nil
}

func (s *Service) issuePair(ctx context.Context, user database.User) (TokenPair, error) {
	now := time.Now()
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Audience:  jwt.ClaimStrings{user.Username},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
	})
	accessToken, err := access.SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := uuid.NewString()
	if err := s.db.InsertRefreshToken(ctx, refreshToken, user.ID, now.Add(s.refreshExpiry)); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
