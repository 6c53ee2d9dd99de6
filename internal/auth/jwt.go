// Package auth validates the bearer tokens that identify adopters.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessTokenExpiry is the lifetime of tokens minted by GenerateAccessToken.
const AccessTokenExpiry = 15 * time.Minute

// DefaultLeeway is the clock skew tolerated during validation.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyUserID is returned when userID is empty.
	ErrEmptyUserID = errors.New("userID cannot be empty")

	// ErrWrongTokenType is returned when a refresh token is presented as a
	// bearer token.
	ErrWrongTokenType = errors.New("token is not an access token")
)

// Claims are the JWT claims carried by adopter tokens. The subject is the
// adopter's user ID.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// JWTService signs and validates HS256 tokens.
// Tokens are signed with currentSecret and validate against either
// currentSecret or previousSecret, which allows zero-downtime rotation.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a service with a single secret.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotation(secret, "")
}

// NewJWTServiceWithRotation creates a service that also accepts tokens
// signed with previousSecret. Pass an empty previousSecret when no rotation
// is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of s using the given validation leeway.
func (s *JWTService) WithLeeway(leeway time.Duration) *JWTService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// GenerateAccessToken mints an access token for userID. The API does not
// issue tokens itself; this is used by tooling and tests.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	return s.generate(userID, TokenTypeAccess, AccessTokenExpiry)
}

func (s *JWTService) generate(userID, typ string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a JWT token, returning the claims if
// valid. It tries currentSecret first, then previousSecret if configured.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		if claims, prevErr := s.parse(tokenString, s.previousSecret); prevErr == nil {
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

// ValidateAccessToken validates tokenString and requires an access token
// with a non-empty subject.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
