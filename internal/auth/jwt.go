package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/model"
)

// Claims represents the JWT claims. The subject is the account id.
type Claims struct {
	DisplayName string `json:"user_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenExpiry is the default token lifetime.
const TokenExpiry = 7 * 24 * time.Hour

// Tokens issues and verifies signed, stateless account tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens returns a token issuer. A non-positive ttl means TokenExpiry.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = TokenExpiry
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue creates a new JWT for an account with a unique JTI.
func (t *Tokens) Issue(acc *model.Account) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	now := time.Now()
	claims := Claims{
		DisplayName: acc.DisplayName,
		Email:       acc.Email,
		Role:        acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   acc.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a JWT and returns its claims.
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.CodeInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fault.New(fault.CodeInvalidToken, "invalid token")
	}
	return claims, nil
}

// Verify validates a JWT and returns the identity it carries.
func (t *Tokens) Verify(tokenStr string) (Identity, error) {
	claims, err := t.Parse(tokenStr)
	if err != nil {
		return Anonymous, err
	}
	return Identity{
		SubjectID:         claims.Subject,
		DisplayName:       claims.DisplayName,
		Email:             claims.Email,
		Role:              claims.Role,
		CredentialPresent: true,
		Token:             tokenStr,
	}, nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
