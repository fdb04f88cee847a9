package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const testKeyID = "test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestJWTAuth(t *testing.T) (*JWTAuth, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc из JWKS JSON: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, 5*time.Second, testLogger()), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestJWTAuth_ValidToken(t *testing.T) {
	auth, key := newTestJWTAuth(t)

	var gotID int64
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("user id отсутствует в контексте")
		}
		gotID = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, validClaims("1001")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	if gotID != 1001 {
		t.Errorf("ожидался user id 1001, получен %d", gotID)
	}
}

func TestJWTAuth_Rejections(t *testing.T) {
	auth, key := newTestJWTAuth(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	expired := validClaims("1001")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExp := validClaims("1001")
	noExp.ExpiresAt = nil

	tests := []struct {
		name   string
		header string
	}{
		{"без заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой токен", "Bearer "},
		{"мусор", "Bearer not-a-jwt"},
		{"просроченный", "Bearer " + signToken(t, key, expired)},
		{"без exp", "Bearer " + signToken(t, key, noExp)},
		{"чужой ключ", "Bearer " + signToken(t, otherKey, validClaims("1001"))},
		{"нечисловой sub", "Bearer " + signToken(t, key, validClaims("alice"))},
		{"нулевой sub", "Bearer " + signToken(t, key, validClaims("0"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := auth.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Error("handler не должен быть вызван")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

func TestHeaderAuth(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		status int
		userID int64
	}{
		{"корректный", "42", http.StatusOK, 42},
		{"с пробелами", " 7 ", http.StatusOK, 7},
		{"отсутствует", "", http.StatusUnauthorized, 0},
		{"не число", "abc", http.StatusUnauthorized, 0},
		{"отрицательный", "-5", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			handler := HeaderAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
			if tt.value != "" {
				req.Header.Set(HeaderUserID, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("ожидался статус %d, получен %d", tt.status, rec.Code)
			}
			if gotID != tt.userID {
				t.Errorf("ожидался user id %d, получен %d", tt.userID, gotID)
			}
		})
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserIDFromContext(req.Context()); ok {
		t.Error("user id не должен присутствовать в пустом контексте")
	}
}
