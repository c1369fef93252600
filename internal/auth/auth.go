// Package auth handles account registration, credential and Google
// sign-in, and the signed tokens carried by game clients.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/mobwars/server/internal/model"
)

// DefaultTokenTTL is used when no TTL is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidCredentials covers both unknown accounts and wrong
	// passwords so responses do not leak which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserExists is returned when the email or username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// googleVerifier validates a Google ID token against an audience.
// Swappable in tests.
type googleVerifier func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Service implements account and token operations on top of the user
// table.
type Service struct {
	db             *gorm.DB
	log            zerolog.Logger
	secret         []byte
	tokenTTL       time.Duration
	googleClientID string
	verifyGoogle   googleVerifier
}

// New creates an auth service. tokenTTL 0 selects the default.
func New(db *gorm.DB, log zerolog.Logger, secret string, tokenTTL time.Duration, googleClientID string) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		db:             db,
		log:            log,
		secret:         []byte(secret),
		tokenTTL:       tokenTTL,
		googleClientID: googleClientID,
		verifyGoogle: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
			return idtoken.Validate(ctx, token, audience)
		},
	}
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, username, password, name string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return nil, "", &ValidationError{Reason: "Email, username and password are required"}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error; err != nil {
		return nil, "", fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, "", ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		Email:        email,
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Uint("userId", user.ID).Str("username", username).Msg("User registered")
	return &user, token, nil
}

// Login checks credentials and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("look up user: %w", err)
	}

	if user.PasswordHash == "" {
		// google-only account, no password to compare
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// GoogleLogin validates a Google ID token, creating the account on
// first sign-in and linking by email when one already exists.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*model.User, string, error) {
	payload, err := s.verifyGoogle(ctx, idToken, s.googleClientID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Google token validation failed")
		return nil, "", ErrInvalidToken
	}

	email := strings.ToLower(claimString(payload, "email"))
	name := claimString(payload, "name")
	if email == "" || payload.Subject == "" {
		return nil, "", ErrInvalidToken
	}

	var user model.User
	err = s.db.WithContext(ctx).
		Where("google_id = ? OR email = ?", payload.Subject, email).
		First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			Email:    email,
			Username: usernameFromEmail(email),
			Name:     name,
			GoogleID: payload.Subject,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, "", fmt.Errorf("create google user: %w", err)
		}
		s.log.Info().Uint("userId", user.ID).Msg("Google user registered")
	case err != nil:
		return nil, "", fmt.Errorf("look up google user: %w", err)
	case user.GoogleID == "":
		if err := s.db.WithContext(ctx).Model(&user).
			Update("google_id", payload.Subject).Error; err != nil {
			return nil, "", fmt.Errorf("link google account: %w", err)
		}
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// IssueToken signs a token carrying the user id.
func (s *Service) IssueToken(userID uint) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"iat":    now.Unix(),
		"exp":    now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry and returns the user id.
func (s *Service) VerifyToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	id, ok := claims["userId"].(float64)
	if !ok || id <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// ValidationError marks a rejected registration payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func claimString(payload *idtoken.Payload, key string) string {
	if v, ok := payload.Claims[key].(string); ok {
		return v
	}
	return ""
}

func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
