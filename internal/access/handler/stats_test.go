package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/logger"
	"medaccess/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockStatsService struct {
	collectFunc func(ctx context.Context, period string) (*model.AccessStats, error)
}

func (m *mockStatsService) Collect(ctx context.Context, period string) (*model.AccessStats, error) {
	if m.collectFunc != nil {
		return m.collectFunc(ctx, period)
	}
	return &model.AccessStats{}, nil
}

func TestStatsGet(t *testing.T) {
	var receivedPeriod string
	handler := NewStatsHandler(&mockStatsService{
		collectFunc: func(ctx context.Context, period string) (*model.AccessStats, error) {
			receivedPeriod = period
			return &model.AccessStats{
				Period:              model.StatsPeriodWeek,
				AppointmentsCreated: 42,
				DecisionsAllowed:    30,
				DecisionsDenied:     7,
			}, nil
		},
	}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/medical_access/api/stats/?period=week", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req, httprouter.Params{})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if receivedPeriod != "week" {
		t.Errorf("expected period week passed through, got %q", receivedPeriod)
	}

	var response struct {
		Data model.AccessStats `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Data.AppointmentsCreated != 42 {
		t.Errorf("expected 42 created, got %d", response.Data.AppointmentsCreated)
	}
}

func TestStatsGet_UnknownPeriod(t *testing.T) {
	handler := NewStatsHandler(&mockStatsService{
		collectFunc: func(ctx context.Context, period string) (*model.AccessStats, error) {
			return nil, apperrors.InvalidInput("unknown period: year")
		},
	}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/medical_access/api/stats/?period=year", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req, httprouter.Params{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
