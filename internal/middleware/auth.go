// Package middleware содержит HTTP middleware административного API наград.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const adminIDKey contextKey = "adminID"

const (
	adminCookieName = "admin_token"
	adminCookieTTL  = 12 * time.Hour
)

// AuthMiddleware пропускает только запросы с подписанным cookie администратора.
// Сам cookie выдаётся вышестоящей системой входа с тем же секретом.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой секрет заменяется случайным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie и кладёт идентификатор администратора в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		adminID, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), adminIDKey, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie выставляет подписанный cookie для администратора.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, adminID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    adminID + "." + a.sign(adminID),
		Path:     "/",
		Expires:  time.Now().Add(adminCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) sign(adminID string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(adminID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(value string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}

	adminID, signature := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(a.sign(adminID))) {
		return "", false
	}

	return adminID, true
}

// GetAdminIDFromContext извлекает идентификатор администратора из контекста запроса.
func GetAdminIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(adminIDKey).(string)
	return id, ok
}
