package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler()
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if resp.Status != statusOK || resp.Service != serviceName {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus string
		wantCode   int
	}{
		{
			name: "всё в порядке",
			checks: []HealthCheck{
				{Name: "postgresql", Checker: staticChecker{"ok"}, Critical: true},
				{Name: "storage", Checker: staticChecker{"ok"}, Critical: true},
			},
			wantStatus: statusOK,
			wantCode:   http.StatusOK,
		},
		{
			name: "некритичная зависимость недоступна",
			checks: []HealthCheck{
				{Name: "postgresql", Checker: staticChecker{"ok"}, Critical: true},
				{Name: "dependencies", Checker: staticChecker{"fail"}},
			},
			wantStatus: statusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name: "PostgreSQL недоступен",
			checks: []HealthCheck{
				{Name: "postgresql", Checker: staticChecker{"fail"}, Critical: true},
				{Name: "dependencies", Checker: staticChecker{"degraded"}},
			},
			wantStatus: statusFail,
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "проверка не инициализирована",
			checks:     []HealthCheck{{Name: "postgresql", Critical: true}},
			wantStatus: statusFail,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("ожидался статус %d, получен %d", tt.wantCode, rec.Code)
			}
			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("ошибка декодирования: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("ожидался статус %q, получен %q", tt.wantStatus, resp.Status)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("ожидалось %d проверок, получено %d", len(tt.checks), len(resp.Checks))
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	if got := overallStatus(); got != statusOK {
		t.Errorf("пустой список: %s", got)
	}
	if got := overallStatus(statusOK, statusDegraded); got != statusDegraded {
		t.Errorf("ожидался degraded, получен %s", got)
	}
	if got := overallStatus(statusDegraded, statusFail); got != statusFail {
		t.Errorf("ожидался fail, получен %s", got)
	}
}
