package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
	"github.com/flatscout/flatscout/internal/session"
)

// maxBodySize limits request bodies, including imported reports.
const maxBodySize = 8 << 20

// Searcher starts and observes search sessions. *session.Manager implements it.
type Searcher interface {
	Start(ctx context.Context, cfg model.SearchConfig) (string, error)
	Stop()
	Status() session.Status
	Running() bool
}

// Store is the report archive and address book behind the API.
type Store interface {
	archive.Archive
	ListAll(ctx context.Context) ([]model.Address, error)
	AddAddress(ctx context.Context, a model.Address) (model.Address, error)
	UpdateAddress(ctx context.Context, a model.Address) error
	DeleteAddress(ctx context.Context, id int64) error
	Stats(ctx context.Context) (model.Stats, error)
}

// Handler implements the API endpoints.
type Handler struct {
	searcher Searcher
	store    Store
	defaults model.SearchConfig
	logger   *slog.Logger
}

// NewHandler creates a Handler. defaults fills the fields a search request
// leaves out.
func NewHandler(searcher Searcher, store Store, defaults model.SearchConfig, logger *slog.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		store:    store,
		defaults: defaults.Clone(),
		logger:   logger,
	}
}

type searchRequest struct {
	Mode      model.SearchMode `json:"mode"`
	MatchMode model.MatchMode  `json:"match_mode"`
	Websites  []string         `json:"websites"`
}

type searchStarted struct {
	ReportID string `json:"report_id"`
}

type statsResponse struct {
	model.Stats
	Running bool `json:"running"`
}

// fail logs err and writes it with the status it maps to.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSONError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// StartSearch handles POST /search. An empty body starts a search with
// the default settings.
func (h *Handler) StartSearch(w http.ResponseWriter, r *http.Request) {
	cfg := h.defaults.Clone()
	if r.ContentLength != 0 {
		var req searchRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Mode != "" {
			cfg.Mode = req.Mode
		}
		if req.MatchMode != "" {
			cfg.MatchMode = req.MatchMode
		}
		if req.Websites != nil {
			cfg.Websites = req.Websites
		}
	}

	id, err := h.searcher.Start(r.Context(), cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, searchStarted{ReportID: id})
}

// StopSearch handles DELETE /search. Stopping when nothing runs is not an error.
func (h *Handler) StopSearch(w http.ResponseWriter, _ *http.Request) {
	h.searcher.Stop()
	respondWithJSON(w, http.StatusOK, h.searcher.Status())
}

// SearchStatus handles GET /search.
func (h *Handler) SearchStatus(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, h.searcher.Status())
}

// ListReports handles GET /reports, most recent first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	respondWithJSON(w, http.StatusOK, reports)
}

// GetReport handles GET /reports/{reportID}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.store.Get(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rep)
}

// DeleteReport handles DELETE /reports/{reportID}.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "reportID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportReport handles POST /reports with a JSON export as body.
func (h *Handler) ImportReport(w http.ResponseWriter, r *http.Request) {
	rep, err := report.Decode(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.Append(r.Context(), rep); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rep)
}

// ExportReport handles GET /reports/{reportID}/export?format=txt|md|json
// and answers with a file download.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	f, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := h.store.Get(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := report.Render(rep, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(rep, f)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListAddresses handles GET /addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.store.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if addrs == nil {
		addrs = []model.Address{}
	}
	respondWithJSON(w, http.StatusOK, addrs)
}

// AddAddress handles POST /addresses.
func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var a model.Address
	if err := decodeBody(w, r, &a); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.ID = 0
	stored, err := h.store.AddAddress(r.Context(), a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, stored)
}

// UpdateAddress handles PUT /addresses/{addressID}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := addressID(w, r)
	if !ok {
		return
	}
	var a model.Address
	if err := decodeBody(w, r, &a); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.ID = id
	if err := h.store.UpdateAddress(r.Context(), a); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

// DeleteAddress handles DELETE /addresses/{addressID}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := addressID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAddress(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func addressID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "addressID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid address id %q", raw))
		return 0, false
	}
	return id, true
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, statsResponse{Stats: s, Running: h.searcher.Running()})
}
