package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/savebox/internal/box"
	"github.com/mtlprog/savebox/internal/domain"
)

type mockBoxService struct {
	mock.Mock
}

func (m *mockBoxService) List(ctx context.Context, familyID string) ([]box.View, error) {
	args := m.Called(ctx, familyID)
	return args.Get(0).([]box.View), args.Error(1)
}

func (m *mockBoxService) Get(ctx context.Context, familyID string, id uuid.UUID) (box.View, error) {
	args := m.Called(ctx, familyID, id)
	return args.Get(0).(box.View), args.Error(1)
}

func (m *mockBoxService) Statement(ctx context.Context, familyID string, id uuid.UUID) (box.Statement, error) {
	args := m.Called(ctx, familyID, id)
	return args.Get(0).(box.Statement), args.Error(1)
}

func (m *mockBoxService) Create(ctx context.Context, familyID string, in box.Input) (box.View, error) {
	args := m.Called(ctx, familyID, in)
	return args.Get(0).(box.View), args.Error(1)
}

func (m *mockBoxService) Update(ctx context.Context, familyID string, id uuid.UUID, in box.Input) (box.View, error) {
	args := m.Called(ctx, familyID, id, in)
	return args.Get(0).(box.View), args.Error(1)
}

func (m *mockBoxService) Delete(ctx context.Context, familyID string, id uuid.UUID) error {
	args := m.Called(ctx, familyID, id)
	return args.Error(0)
}

func (m *mockBoxService) Move(ctx context.Context, familyID string, id uuid.UUID, in box.MovementInput) (box.View, error) {
	args := m.Called(ctx, familyID, id, in)
	return args.Get(0).(box.View), args.Error(1)
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(familyHeader, "fam")
	return req
}

func TestListBoxes(t *testing.T) {
	svc := &mockBoxService{}
	svc.On("List", mock.Anything, "fam").Return([]box.View{{Name: "Travel"}}, nil)

	w := httptest.NewRecorder()
	NewHandler(svc, time.UTC).ListBoxes(w, newRequest(http.MethodGet, "/api/v1/boxes", ""))

	require.Equal(t, http.StatusOK, w.Code)
	var got []box.View
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Travel", got[0].Name)
	svc.AssertExpectations(t)
}

func TestMissingFamilyHeader(t *testing.T) {
	svc := &mockBoxService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/boxes", nil)
	w := httptest.NewRecorder()

	NewHandler(svc, time.UTC).ListBoxes(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestGetBoxInvalidID(t *testing.T) {
	svc := &mockBoxService{}
	req := newRequest(http.MethodGet, "/api/v1/boxes/nope", "")
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	NewHandler(svc, time.UTC).GetBox(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBoxDecodesInput(t *testing.T) {
	svc := &mockBoxService{}
	svc.On("Create", mock.Anything, "fam", mock.MatchedBy(func(in box.Input) bool {
		return *in.Name == "Travel" &&
			*in.InvestmentType == "cdb_cdi" &&
			in.CDIPercentage.Equal(decimal.NewFromInt(110)) &&
			in.InitialValue.Equal(decimal.RequireFromString("1500.5")) &&
			in.ApplicationDate.Format("2006-01-02") == "2026-10-01" &&
			in.CDIAnnualRate == nil
	})).Return(box.View{Name: "Travel"}, nil)

	body := `{"name":"Travel","investmentType":"cdb_cdi","yieldPercentage":110,"initialValue":"1500,50","applicationDate":"2026-10-01"}`
	w := httptest.NewRecorder()
	NewHandler(svc, time.UTC).CreateBox(w, newRequest(http.MethodPost, "/api/v1/boxes", body))

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateBoxDateOnlyIsBusinessMidnight(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"date only", "2026-10-01", time.Date(2026, 10, 1, 0, 0, 0, 0, brt)},
		{"rfc3339 keeps offset", "2026-10-01T12:00:00Z", time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBoxService{}
			svc.On("Create", mock.Anything, "fam", mock.MatchedBy(func(in box.Input) bool {
				return in.ApplicationDate != nil && in.ApplicationDate.Equal(tt.want)
			})).Return(box.View{}, nil)

			body := fmt.Sprintf(`{"name":"x","applicationDate":%q}`, tt.date)
			w := httptest.NewRecorder()
			NewHandler(svc, brt).CreateBox(w, newRequest(http.MethodPost, "/api/v1/boxes", body))

			assert.Equal(t, http.StatusCreated, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCreateBoxInvalidDate(t *testing.T) {
	svc := &mockBoxService{}
	w := httptest.NewRecorder()
	NewHandler(svc, time.UTC).CreateBox(w, newRequest(http.MethodPost, "/api/v1/boxes", `{"name":"x","applicationDate":"yesterday"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestMoveBoxErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrRateUnavailable), http.StatusServiceUnavailable},
		{domain.ErrValidation, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrConflict, http.StatusConflict},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	id := uuid.New()
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockBoxService{}
			svc.On("Move", mock.Anything, "fam", id, mock.MatchedBy(func(in box.MovementInput) bool {
				return in.Value.Equal(decimal.NewFromInt(5)) && in.Type == "out"
			})).
				Return(box.View{}, tt.err)

			req := newRequest(http.MethodPost, "/api/v1/boxes/"+id.String()+"/move", `{"value":5,"type":"out"}`)
			req.SetPathValue("id", id.String())
			w := httptest.NewRecorder()
			NewHandler(svc, time.UTC).MoveBox(w, req)

			assert.Equal(t, tt.want, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestDeleteBox(t *testing.T) {
	id := uuid.New()
	svc := &mockBoxService{}
	svc.On("Delete", mock.Anything, "fam", id).Return(nil)

	req := newRequest(http.MethodDelete, "/api/v1/boxes/"+id.String(), "")
	req.SetPathValue("id", id.String())
	w := httptest.NewRecorder()
	NewHandler(svc, time.UTC).DeleteBox(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestDownloadStatement(t *testing.T) {
	id := uuid.New()
	svc := &mockBoxService{}
	svc.On("Statement", mock.Anything, "fam", id).Return(box.Statement{Box: box.View{ID: id, Name: "Travel"}}, nil)

	req := newRequest(http.MethodGet, "/api/v1/boxes/"+id.String()+"/statement.xlsx", "")
	req.SetPathValue("id", id.String())
	w := httptest.NewRecorder()
	NewHandler(svc, time.UTC).DownloadStatement(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), id.String())
	// xlsx files are zip archives.
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}
