package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/SuperK55/aluri-back-sub001/internal/tenancy"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
)

const defaultSlotsMax = 10

// Handler exposes read-only availability endpoints scoped to the caller's owner.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler creates the availability HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Routes mounts under /resources.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{resourceID}/availability/next", h.NextSlot)
	r.Get("/{resourceID}/availability/slots", h.Slots)
	r.Get("/{resourceID}/availability/date/{date}", h.SlotsOnDate)
	r.Get("/{resourceID}/availability/before/{date}", h.SlotsBefore)
	r.Get("/{resourceID}/alternatives", h.Alternatives)
	return r
}

type slotQuery struct {
	From time.Time
	Max  int `validate:"min=1,max=100"`
}

type slotResponse struct {
	ResourceID string `json:"resource_id"`
	Slot       Slot   `json:"slot"`
}

type slotsResponse struct {
	ResourceID string `json:"resource_id"`
	Slots      []Slot `json:"slots"`
}

type alternativesResponse struct {
	ResourceID   string        `json:"resource_id"`
	Alternatives []Alternative `json:"alternatives"`
}

// NextSlot handles GET /resources/{resourceID}/availability/next.
func (h *Handler) NextSlot(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedResource(w, r)
	if !ok {
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	slot, err := h.svc.Finder().NextSlot(r.Context(), res.Schedule, q.From)
	if err != nil {
		h.fail(w, res.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{ResourceID: res.ID, Slot: slot})
}

// Slots handles GET /resources/{resourceID}/availability/slots?max=N&from=RFC3339.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedResource(w, r)
	if !ok {
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	slots, err := h.svc.Finder().Slots(r.Context(), res.Schedule, q.From, q.Max)
	if err != nil {
		h.fail(w, res.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{ResourceID: res.ID, Slots: slots})
}

// SlotsOnDate handles GET /resources/{resourceID}/availability/date/{date}.
func (h *Handler) SlotsOnDate(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedResource(w, r)
	if !ok {
		return
	}
	slots, err := h.svc.Finder().SlotsOnDate(r.Context(), res.Schedule, chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, res.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{ResourceID: res.ID, Slots: slots})
}

// SlotsBefore handles GET /resources/{resourceID}/availability/before/{date}?max=N.
func (h *Handler) SlotsBefore(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedResource(w, r)
	if !ok {
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	slots, err := h.svc.Finder().SlotsBefore(r.Context(), res.Schedule, chi.URLParam(r, "date"), q.Max)
	if err != nil {
		h.fail(w, res.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{ResourceID: res.ID, Slots: slots})
}

// Alternatives handles GET /resources/{resourceID}/alternatives.
func (h *Handler) Alternatives(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownedResource(w, r)
	if !ok {
		return
	}
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	alts, err := h.svc.Alternatives(r.Context(), res.ID, q.From)
	if err != nil {
		h.fail(w, res.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, alternativesResponse{ResourceID: res.ID, Alternatives: alts})
}

// ownedResource loads the path resource and hides resources that belong to
// another owner behind a 404.
func (h *Handler) ownedResource(w http.ResponseWriter, r *http.Request) (*Resource, bool) {
	resourceID := strings.TrimSpace(chi.URLParam(r, "resourceID"))
	if resourceID == "" {
		writeError(w, http.StatusBadRequest, "resource_id required")
		return nil, false
	}
	if _, ok := tenancy.OwnerIDFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "owner required")
		return nil, false
	}
	res, err := h.svc.Resource(r.Context(), resourceID)
	if err != nil {
		h.fail(w, resourceID, err)
		return nil, false
	}
	if err := tenancy.Authorize(r.Context(), res.OwnerID); err != nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return nil, false
	}
	return res, true
}

func (h *Handler) parseQuery(w http.ResponseWriter, r *http.Request) (slotQuery, bool) {
	q := slotQuery{From: h.now(), Max: defaultSlotsMax}
	values := r.URL.Query()
	if raw := strings.TrimSpace(values.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339")
			return q, false
		}
		q.From = from
	}
	if raw := strings.TrimSpace(values.Get("max")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max must be an integer")
			return q, false
		}
		q.Max = n
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "max must be between 1 and 100")
		return q, false
	}
	return q, true
}

func (h *Handler) fail(w http.ResponseWriter, resourceID string, err error) {
	switch {
	case errors.Is(err, ErrResourceNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid date")
	default:
		h.logger.Error("availability query failed", "resource_id", resourceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
