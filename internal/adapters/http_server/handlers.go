// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rental_moderation/internal/app"
	"rental_moderation/internal/domain"
)

const (
	maxBodyBytes = 1 << 20
	maxPending   = app.MaxPendingLimit
	adminHeader  = "X-Admin-ID"
)

type Handlers struct {
	M *app.ModerationService
	Q *app.QueryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/moderation", func(r chi.Router) {
		r.Get("/amenities", h.amenities)
		r.Get("/pending", h.listPending)
		r.Get("/stats", h.stats)
		r.Post("/evaluate", h.evaluate)
		r.Post("/compare-amenities", h.compareAmenities)
		r.Post("/analyze-image", h.analyzeImage)
		r.Post("/analyze-images", h.analyzeImages)
		r.Post("/review/{id}", h.review)
	})
	s.mux.Get("/v1/listings/{id}/moderation", h.getModeration)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAction):
		writeProblem(w, http.StatusBadRequest, "Invalid action", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		detail := "body must be a JSON object"
		if errors.Is(err, io.EOF) {
			detail = "request body is empty"
		}
		writeProblem(w, http.StatusBadRequest, "Invalid body", detail)
		return false
	}
	return true
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func (h *Handlers) amenities(w http.ResponseWriter, r *http.Request) {
	writeWithETag(w, r, map[string]any{"amenities": domain.AmenityCatalog})
}

type evaluateRequest struct {
	Images       []string `json:"images"`
	Amenities    []string `json:"amenities"`
	PropertyType string   `json:"propertyType"`
	Price        float64  `json:"price"`
	Area         float64  `json:"area"`
}

func (h *Handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	meta := domain.ListingMeta{PropertyType: req.PropertyType, Price: req.Price, Area: req.Area}
	ev, err := h.M.Evaluate(r.Context(), req.Images, req.Amenities, meta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type compareRequest struct {
	Claimed  []string `json:"claimed"`
	Detected []string `json:"detected"`
	Images   []string `json:"images"`
}

type compareResponse struct {
	Comparison        domain.AmenityComparison `json:"comparison"`
	DetectedAmenities []string                 `json:"detectedAmenities"`
}

// compareAmenities takes either a detected list or photos to detect from.
func (h *Handlers) compareAmenities(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Claimed == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid input", "claimed is required")
		return
	}
	if len(req.Images) > 0 {
		cmp, sum, err := h.M.CompareWithImages(r.Context(), req.Claimed, req.Images)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, compareResponse{Comparison: cmp, DetectedAmenities: sum.AllDetectedAmenities})
		return
	}
	if req.Detected == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid input", "either detected or images is required")
		return
	}
	cmp := h.M.CompareAmenities(req.Claimed, req.Detected)
	writeJSON(w, http.StatusOK, compareResponse{Comparison: cmp, DetectedAmenities: req.Detected})
}

func (h *Handlers) analyzeImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := h.M.AnalyzeImage(r.Context(), req.Image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) analyzeImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Images []string `json:"images"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sum, err := h.M.AnalyzeImages(r.Context(), req.Images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type reviewRequest struct {
	Action     domain.AdminAction `json:"action"`
	Notes      string             `json:"notes"`
	AdminNotes string             `json:"adminNotes"` // older admin UI
}

func (h *Handlers) review(w http.ResponseWriter, r *http.Request) {
	// identity comes from the auth gateway in front of us
	adminID := strings.TrimSpace(r.Header.Get(adminHeader))
	if adminID == "" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", adminHeader+" header is required")
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	notes := req.Notes
	if notes == "" {
		notes = req.AdminNotes
	}
	res, err := h.M.Review(r.Context(), chi.URLParam(r, "id"), req.Action, notes, adminID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) listPending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > maxPending {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", fmt.Sprintf("limit must be an integer between 1 and %d", maxPending))
			return
		}
		limit = l
	}
	out, err := h.Q.ListPending(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, out)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Q.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, st)
}

func (h *Handlers) getModeration(w http.ResponseWriter, r *http.Request) {
	lv, err := h.Q.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, lv)
}
