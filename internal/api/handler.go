package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/box"
	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/export"
)

const (
	familyHeader    = "X-Family-ID"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BoxService is the box orchestration used by the HTTP layer.
type BoxService interface {
	List(ctx context.Context, familyID string) ([]box.View, error)
	Get(ctx context.Context, familyID string, id uuid.UUID) (box.View, error)
	Statement(ctx context.Context, familyID string, id uuid.UUID) (box.Statement, error)
	Create(ctx context.Context, familyID string, in box.Input) (box.View, error)
	Update(ctx context.Context, familyID string, id uuid.UUID, in box.Input) (box.View, error)
	Delete(ctx context.Context, familyID string, id uuid.UUID) error
	Move(ctx context.Context, familyID string, id uuid.UUID, in box.MovementInput) (box.View, error)
}

// Handler provides HTTP endpoints for savings boxes.
type Handler struct {
	boxes BoxService
	loc   *time.Location
}

// NewHandler creates a new API handler. Date-only values are read as
// midnight in loc.
func NewHandler(boxes BoxService, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{boxes: boxes, loc: loc}
}

// ListBoxes handles GET /api/v1/boxes.
func (h *Handler) ListBoxes(w http.ResponseWriter, r *http.Request) {
	family, ok := familyID(w, r)
	if !ok {
		return
	}
	views, err := h.boxes.List(r.Context(), family)
	if err != nil {
		writeServiceError(w, "failed to list boxes", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetBox handles GET /api/v1/boxes/{id}.
func (h *Handler) GetBox(w http.ResponseWriter, r *http.Request) {
	family, id, ok := boxRef(w, r)
	if !ok {
		return
	}
	v, err := h.boxes.Get(r.Context(), family, id)
	if err != nil {
		writeServiceError(w, "failed to get box", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CreateBox handles POST /api/v1/boxes.
func (h *Handler) CreateBox(w http.ResponseWriter, r *http.Request) {
	family, ok := familyID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeBoxInput(w, r)
	if !ok {
		return
	}
	v, err := h.boxes.Create(r.Context(), family, in)
	if err != nil {
		writeServiceError(w, "failed to create box", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// UpdateBox handles PUT /api/v1/boxes/{id}.
func (h *Handler) UpdateBox(w http.ResponseWriter, r *http.Request) {
	family, id, ok := boxRef(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeBoxInput(w, r)
	if !ok {
		return
	}
	v, err := h.boxes.Update(r.Context(), family, id, in)
	if err != nil {
		writeServiceError(w, "failed to update box", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DeleteBox handles DELETE /api/v1/boxes/{id}.
func (h *Handler) DeleteBox(w http.ResponseWriter, r *http.Request) {
	family, id, ok := boxRef(w, r)
	if !ok {
		return
	}
	if err := h.boxes.Delete(r.Context(), family, id); err != nil {
		writeServiceError(w, "failed to delete box", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveBox handles POST /api/v1/boxes/{id}/move.
func (h *Handler) MoveBox(w http.ResponseWriter, r *http.Request) {
	family, id, ok := boxRef(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := h.boxes.Move(r.Context(), family, id, box.MovementInput{Value: req.Value.Decimal, Type: req.Type})
	if err != nil {
		writeServiceError(w, "failed to move box funds", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DownloadStatement handles GET /api/v1/boxes/{id}/statement.xlsx.
func (h *Handler) DownloadStatement(w http.ResponseWriter, r *http.Request) {
	family, id, ok := boxRef(w, r)
	if !ok {
		return
	}
	st, err := h.boxes.Statement(r.Context(), family, id)
	if err != nil {
		writeServiceError(w, "failed to get statement", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteStatement(&buf, st); err != nil {
		slog.Error("failed to render statement", "box", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
	}
}

// amount accepts JSON numbers and strings, including a decimal comma.
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		a.Decimal = decimal.NewFromFloat(v)
	case string:
		a.Decimal = domain.SafeParse(v)
	case nil:
		a.Decimal = decimal.Zero
	default:
		return fmt.Errorf("invalid amount %s", data)
	}
	return nil
}

type moveRequest struct {
	Value amount `json:"value"`
	Type  string `json:"type"`
}

type boxRequest struct {
	Name            *string `json:"name"`
	IsEmergency     *bool   `json:"isEmergency"`
	InvestmentType  *string `json:"investmentType"`
	CDIPercentage   *amount `json:"cdiPercentage"`
	YieldPercentage *amount `json:"yieldPercentage"`
	CDIAnnualRate   *amount `json:"cdiAnnualRate"`
	AutoCDI         *bool   `json:"autoCdi"`
	InitialValue    *amount `json:"initialValue"`
	ApplicationDate *string `json:"applicationDate"`
}

func (h *Handler) decodeBoxInput(w http.ResponseWriter, r *http.Request) (box.Input, bool) {
	var req boxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return box.Input{}, false
	}

	in := box.Input{
		Name:           req.Name,
		IsEmergency:    req.IsEmergency,
		InvestmentType: req.InvestmentType,
		CDIPercentage:  decimalOf(req.CDIPercentage),
		CDIAnnualRate:  decimalOf(req.CDIAnnualRate),
		AutoCDI:        req.AutoCDI,
		InitialValue:   decimalOf(req.InitialValue),
	}
	if in.CDIPercentage == nil {
		in.CDIPercentage = decimalOf(req.YieldPercentage)
	}
	if req.ApplicationDate != nil && *req.ApplicationDate != "" {
		t, err := parseDate(*req.ApplicationDate, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid applicationDate, expected YYYY-MM-DD or RFC 3339")
			return box.Input{}, false
		}
		in.ApplicationDate = &t
	}
	return in, true
}

func decimalOf(a *amount) *decimal.Decimal {
	if a == nil {
		return nil
	}
	return &a.Decimal
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}

func familyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	family := strings.TrimSpace(r.Header.Get(familyHeader))
	if family == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return "", false
	}
	return family, true
}

func boxRef(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	family, ok := familyID(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid box id")
		return "", uuid.Nil, false
	}
	return family, id, true
}

// writeServiceError maps domain errors to HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "box not found")
	case errors.Is(err, domain.ErrRateUnavailable):
		writeError(w, http.StatusServiceUnavailable, "benchmark rate unavailable")
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "box was modified concurrently, retry")
	default:
		slog.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
