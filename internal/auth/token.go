package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sekikawa/project-management-api/internal/models"
)

type accessClaims struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Validator issues and verifies bearer tokens. Both the REST middleware and
// the websocket handshake resolve credentials through the same instance so
// the two paths cannot drift.
type Validator struct {
	secret   []byte
	lifetime time.Duration
	logger   *zap.Logger
}

func NewValidator(secret string, lifetime time.Duration, logger *zap.Logger) *Validator {
	return &Validator{
		secret:   []byte(secret),
		lifetime: lifetime,
		logger:   logger,
	}
}

// Issue creates a signed access token for the user.
func (v *Validator) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Name:  user.DisplayName,
		Admin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate resolves a bearer token to a principal. Any failure (malformed,
// expired, bad signature, unusable subject) degrades to Anonymous so that
// callers uniformly branch on IsAuthenticated; it never returns an error.
func (v *Validator) Validate(tokenString string) Principal {
	if tokenString == "" {
		return Anonymous
	}

	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		v.logger.Debug("token validation failed", zap.Error(err))
		return Anonymous
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		v.logger.Debug("token has unusable subject", zap.String("sub", claims.Subject))
		return Anonymous
	}

	return Principal{
		ID:      userID,
		Name:    claims.Name,
		IsAdmin: claims.Admin,
	}
}
