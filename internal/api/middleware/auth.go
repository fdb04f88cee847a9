// auth.go — аутентификация вызывающего пользователя.
// Режим jwt: RS256 + JWKS, числовой sub становится user id.
// Режим header: user id берётся из X-User-ID, который проставляет API Gateway.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
)

// HeaderUserID — заголовок с идентификатором пользователя в режиме header.
const HeaderUserID = "X-User-ID"

type contextKey string

const (
	contextKeyUserID   contextKey = "user_id"
	contextKeyUserSlot contextKey = "user_slot"
)

// userSlot передаёт user id обратно в RequestLogger.
type userSlot struct {
	userID int64
	set    bool
}

func withUserSlot(ctx context.Context, slot *userSlot) context.Context {
	return context.WithValue(ctx, contextKeyUserSlot, slot)
}

// WithUserID помещает user id в контекст.
func WithUserID(ctx context.Context, userID int64) context.Context {
	if slot, ok := ctx.Value(contextKeyUserSlot).(*userSlot); ok {
		slot.userID, slot.set = userID, true
	}
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// UserIDFromContext извлекает user id. ok == false, если запрос не аутентифицирован.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKeyUserID).(int64)
	return id, ok
}

// parseUserID принимает только положительные целые идентификаторы.
func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный идентификатор пользователя %q", s)
	}
	return id, nil
}

// JWTAuth — middleware JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig — параметры JWT middleware.
type JWTAuthConfig struct {
	JWKSURL string
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке exp/nbf
	JWTLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq: сервис стартует, даже если IdP ещё недоступен
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: authCfg.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, authCfg.JWTLeeway, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовой keyfunc (тесты, статический JWKS).
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware проверяет Bearer token (RS256, обязательный exp) и помещает
// числовой sub в контекст как user id.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			userID, err := parseUserID(claims.Subject)
			if err != nil {
				apierrors.Unauthorized(w, "sub токена должен быть числовым идентификатором пользователя")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// HeaderAuth доверяет X-User-ID от API Gateway. Используется, когда
// токен уже проверен на входе в кластер.
func HeaderAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderUserID)
			if raw == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок "+HeaderUserID)
				return
			}
			userID, err := parseUserID(raw)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
