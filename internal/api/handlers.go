package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/bitemporal/internal/domain"
	"github.com/rpattn/bitemporal/internal/export"
	"github.com/rpattn/bitemporal/internal/repository"
	"github.com/rpattn/bitemporal/internal/temporal"
)

// Handler is the example CRUD + timeline HTTP surface over the temporal
// engine.
type Handler struct {
	docs     repository.DocumentRepository
	notes    repository.NoteRepository
	exporter *export.Service
}

// NewHandler creates the API handler
func NewHandler(docs repository.DocumentRepository, notes repository.NoteRepository, exporter *export.Service) *Handler {
	return &Handler{docs: docs, notes: notes, exporter: exporter}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/documents"):
		h.serveDocuments(w, r)
	case strings.HasPrefix(r.URL.Path, "/notes"):
		h.serveNotes(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type activityPayload struct {
	Description string `json:"description"`
	Actor       string `json:"actor"`
}

type documentPayload struct {
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Status   string           `json:"status"`
	Activity *activityPayload `json:"activity"`
}

type documentResponse struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Status string    `json:"status"`
	VClock int       `json:"vclock"`
}

type timelineEntryResponse struct {
	Tick       int            `json:"tick"`
	RecordedAt time.Time      `json:"recordedAt"`
	Changed    map[string]any `json:"changed"`
	Activity   any            `json:"activity,omitempty"`
}

func (h *Handler) serveDocuments(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreateDocument(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.handleListDocuments(w, r)
	case len(parts) == 1:
		id, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "invalid document id", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGetDocument(w, r, id)
		case http.MethodPut:
			h.handleUpdateDocument(w, r, id)
		case http.MethodDelete:
			writeError(w, h.docs.Delete(r.Context(), id))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && r.Method == http.MethodGet:
		id, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "invalid document id", http.StatusBadRequest)
			return
		}
		switch parts[1] {
		case "timeline":
			h.handleDocumentTimeline(w, r, id)
		case "timeline.xlsx":
			h.handleTimelineXLSX(w, r, id)
		case "timeline.csv":
			h.handleTimelineCSV(w, r, id)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var payload documentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	doc := &domain.Document{Title: payload.Title, Body: payload.Body, Status: payload.Status}
	if err := h.docs.Save(r.Context(), doc, payload.activity()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, doc := range docs {
		out[i] = toDocumentResponse(doc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) handleUpdateDocument(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var payload documentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	doc.Title = payload.Title
	doc.Body = payload.Body
	doc.Status = payload.Status
	if err := h.docs.Save(r.Context(), doc, payload.activity()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) handleDocumentTimeline(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	entries, err := h.docs.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(entries))
}

func (h *Handler) handleTimelineXLSX(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	// Render fully before touching the response, so a failed export still
	// gets an error status instead of a 200 with a truncated body.
	var buf bytes.Buffer
	if err := h.exporter.WriteXLSX(r.Context(), &buf, id); err != nil {
		log.Printf("[EXPORT] xlsx export failed: %v", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="timeline.xlsx"`)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[EXPORT] failed to send xlsx: %v", err)
	}
}

func (h *Handler) handleTimelineCSV(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var buf bytes.Buffer
	if err := h.exporter.WriteCSV(r.Context(), &buf, id); err != nil {
		log.Printf("[EXPORT] csv export failed: %v", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="timeline.csv"`)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[EXPORT] failed to send csv: %v", err)
	}
}

type notePayload struct {
	Title string `json:"title"`
}

type noteResponse struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	VClock int       `json:"vclock"`
}

func (h *Handler) serveNotes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/notes"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		var payload notePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		note := &domain.Note{Title: payload.Title}
		if err := h.notes.Save(r.Context(), note); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, noteResponse{ID: note.ID, Title: note.Title, VClock: note.VClock})
	case len(parts) == 1 && r.Method == http.MethodGet:
		id, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "invalid note id", http.StatusBadRequest)
			return
		}
		note, err := h.notes.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, noteResponse{ID: note.ID, Title: note.Title, VClock: note.VClock})
	case len(parts) == 2 && parts[1] == "timeline" && r.Method == http.MethodGet:
		id, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "invalid note id", http.StatusBadRequest)
			return
		}
		entries, err := h.notes.Timeline(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTimelineResponse(entries))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (p documentPayload) activity() *domain.DocumentActivity {
	if p.Activity == nil {
		return nil
	}
	return &domain.DocumentActivity{Description: p.Activity.Description, Actor: p.Activity.Actor}
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	return documentResponse{ID: doc.ID, Title: doc.Title, Body: doc.Body, Status: doc.Status, VClock: doc.VClock}
}

func toTimelineResponse(entries []temporal.TimelineEntry) []timelineEntryResponse {
	out := make([]timelineEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = timelineEntryResponse{
			Tick:       e.Clock.Tick,
			RecordedAt: e.Clock.RecordedAt,
			Changed:    e.Changed,
			Activity:   e.Clock.Activity,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, temporal.ErrCausalRecordMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, temporal.ErrTemporalDeleteForbidden),
		errors.Is(err, temporal.ErrBulkOperationDisabled),
		errors.Is(err, temporal.ErrIntegrityViolation):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
