// Package middleware содержит HTTP middleware веб-приложения чайханы.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const userKey contextKey = "telegramUser"

const (
	// InitDataHeader — заголовок, в котором Web App передаёт Telegram.WebApp.initData.
	InitDataHeader = "X-Telegram-Init-Data"

	initDataMaxAge = 24 * time.Hour

	// Допустимое расхождение часов клиента и сервера для auth_date из будущего.
	initDataClockSkew = time.Minute
)

var (
	errNoHash     = errors.New("init data: hash is missing")
	errBadHash    = errors.New("init data: hash mismatch")
	errExpired    = errors.New("init data: expired")
	errFromFuture = errors.New("init data: auth_date is in the future")
	errNoUser     = errors.New("init data: user is missing")
	errBadFormat  = errors.New("init data: malformed")
)

// TelegramUser — пользователь, открывший Web App.
type TelegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// AuthMiddleware проверяет подпись initData от Telegram Web App.
type AuthMiddleware struct {
	secretKey []byte
	maxAge    time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware для токена бота.
// Ключ подписи равен HMAC-SHA256("WebAppData", token).
func NewAuthMiddleware(botToken string) *AuthMiddleware {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	return &AuthMiddleware{
		secretKey: mac.Sum(nil),
		maxAge:    initDataMaxAge,
		now:       time.Now,
	}
}

// Middleware отклоняет запросы без корректного initData и кладёт пользователя в контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		user, err := a.Validate(raw)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Validate проверяет подпись и срок действия initData и возвращает пользователя.
func (a *AuthMiddleware) Validate(raw string) (TelegramUser, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return TelegramUser{}, errBadFormat
	}

	hash := values.Get("hash")
	if hash == "" {
		return TelegramUser{}, errNoHash
	}
	values.Del("hash")

	if !hmac.Equal([]byte(hash), []byte(a.sign(values))) {
		return TelegramUser{}, errBadHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return TelegramUser{}, errBadFormat
	}
	age := a.now().Sub(time.Unix(authDate, 0))
	if age > a.maxAge {
		return TelegramUser{}, errExpired
	}
	if age < -initDataClockSkew {
		return TelegramUser{}, errFromFuture
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return TelegramUser{}, errNoUser
	}

	return user, nil
}

// Sign добавляет к полям подпись hash и возвращает строку initData.
func (a *AuthMiddleware) Sign(values url.Values) string {
	signed := url.Values{}
	for k, v := range values {
		if k != "hash" {
			signed[k] = v
		}
	}
	signed.Set("hash", a.sign(signed))
	return signed.Encode()
}

func (a *AuthMiddleware) sign(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetUserFromContext извлекает пользователя Telegram из контекста запроса.
func GetUserFromContext(ctx context.Context) (TelegramUser, bool) {
	u, ok := ctx.Value(userKey).(TelegramUser)
	return u, ok
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, u TelegramUser) context.Context {
	return context.WithValue(ctx, userKey, u)
}
