// openapi.go — проверка запросов по встроенному OpenAPI контракту.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
)

// RequestValidator проверяет параметры пути и query, а также JSON-тела.
// Multipart-тела проверяет обработчик: валидатор не читает их в память.
// Запросы к путям вне контракта (health, metrics) пропускаются.
type RequestValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewRequestValidator строит маршрутизатор контракта.
func NewRequestValidator(doc *openapi3.T, logger *slog.Logger) (*RequestValidator, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("маршрутизатор OpenAPI: %w", err)
	}
	return &RequestValidator{
		router: router,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				// Путь или метод вне контракта: решение за chi (404/405)
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					ExcludeRequestBody: isMultipart(r),
					MultiError:         false,
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не прошёл проверку контракта",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// validationMessage формирует короткое сообщение для клиента.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			return fmt.Sprintf("Некорректный параметр %s: %s", reqErr.Parameter.Name, firstLine(reqErr.Err))
		case reqErr.RequestBody != nil:
			return "Некорректное тело запроса: " + firstLine(reqErr.Err)
		}
	}
	return "Запрос не соответствует контракту API"
}

func firstLine(err error) string {
	if err == nil {
		return "неизвестная ошибка"
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}
