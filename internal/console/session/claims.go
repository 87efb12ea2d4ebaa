package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/xdr-console/internal/domain"
)

var errNoExpiry = errors.New("token has no exp claim")

// ParseClaims читает полезную нагрузку access-токена без проверки подписи.
// Ключа бэкенда у клиента нет: подпись проверяет только сервер.
func ParseClaims(tokenStr string) (*domain.TokenClaims, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	tokenStr = strings.TrimSpace(tokenStr)

	claims := &domain.TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// TokenExpiry возвращает момент истечения токена по claim exp.
func TokenExpiry(tokenStr string) (time.Time, error) {
	claims, err := ParseClaims(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
