package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the identity provider's access token claims. Subject carries
// the user id.
type Claims struct {
	Role       string `json:"role"`
	PracticeID string `json:"practice_id"`
	jwt.RegisteredClaims
}

// Validator turns bearer tokens into actors. Tokens are issued elsewhere;
// this side only verifies them.
type Validator interface {
	Validate(token string) (*model.Actor, error)
}

type jwtValidator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewValidator builds an HS256 validator. Empty issuer or audience skips
// that check.
func NewValidator(secret, issuer, audience string) Validator {
	return &jwtValidator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}
}

func (v *jwtValidator) Validate(tokenString string) (*model.Actor, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	practiceID, err := uuid.Parse(claims.PracticeID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad practice_id", ErrInvalidToken)
	}

	// Unknown roles are kept as-is; the permission resolver fails them closed.
	return &model.Actor{
		UserID:     userID,
		Role:       model.Role(claims.Role),
		PracticeID: practiceID,
	}, nil
}

// Sign issues an HS256 token for the given actor. Only used by tests and
// local tooling; production tokens come from the identity provider.
func Sign(secret string, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:       string(actor.Role),
		PracticeID: actor.PracticeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
