package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/annotator"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/assembler"
	"github.com/starford/ansuz/internal/tree"
	"github.com/starford/ansuz/internal/validate"
)

// Handler holds API route handlers.
type Handler struct {
	svc *annotator.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *annotator.Service) *Handler {
	return &Handler{svc: svc}
}

// Annotate handles POST /api/annotate.
//
//	@Summary		Annotate a sentence tree with typed notes
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnnotateRequest	true	"Sentence and skeleton tree"
//	@Success		200		{object}	AnnotateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotate [post]
func (h *Handler) Annotate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req AnnotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	root, err := tree.Decode(req.Tree)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}

	res, err := h.svc.Annotate(r.Context(), annotator.Request{
		Sentence:       req.Sentence,
		Tree:           root,
		NoteMode:       assembler.NoteMode(req.NoteMode),
		ValidationMode: validate.Mode(req.ValidationMode),
		Debug:          req.Debug,
		Refresh:        req.Refresh,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrFrozenStructure) || errors.Is(err, apperr.ErrAccounting) {
			slog.Error("annotate failed", slog.String("sentence", req.Sentence), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	doc, err := encodeDocument(res.Sentence, res.Tree)
	if err != nil {
		slog.Error("encode document failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, AnnotateResponse{
		ID:              res.ID,
		Sentence:        res.Sentence,
		Valid:           res.Valid,
		Errors:          res.Errors,
		Summary:         res.Summary,
		BackoffSummary:  res.Debug,
		RegistryVersion: res.RegistryVersion,
		Cached:          res.Cached,
		Document:        doc,
	})
}

// ValidateTree handles POST /api/validate.
//
//	@Summary		Validate an annotated tree against the output contract
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateRequest	true	"Annotated tree"
//	@Success		200		{object}	ValidateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) ValidateTree(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	root, err := tree.Decode(req.Tree)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	verrs, err := h.svc.Validate(r.Context(), root, validate.Mode(req.ValidationMode))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:  len(verrs) == 0,
		Errors: verrs,
	})
}

// ListAnnotations handles GET /api/annotations.
//
//	@Summary		List stored annotation runs
//	@Tags			annotations
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			q		query		string	false	"Filter by sentence substring"
//	@Success		200		{object}	AnnotationListResponse
//	@Security		BearerAuth
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.List(r.Context(), limit, offset, q.Get("q"))
	if err != nil {
		slog.Error("list annotations failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]AnnotationListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, AnnotationListItem{
			ID:              row.ID,
			Sentence:        row.Sentence,
			Valid:           row.Valid,
			RegistryVersion: row.RegistryVersion,
			NoteMode:        row.NoteMode,
			ValidationMode:  row.ValidationMode,
			CreatedAt:       row.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, AnnotationListResponse{
		Annotations: items,
		Total:       total,
	})
}

// GetAnnotation handles GET /api/annotations/{id}.
//
//	@Summary		Get a stored annotation run by id
//	@Tags			annotations
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{object}	AnnotateResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [get]
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get annotation failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, AnnotateResponse{
		ID:              row.ID,
		Sentence:        row.Sentence,
		Valid:           row.Valid,
		RegistryVersion: row.RegistryVersion,
		Summary:         summaryFromRow(row),
		Cached:          true,
		Document:        row.Payload,
	})
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
//
//	@Summary		Delete a stored annotation run
//	@Tags			annotations
//	@Param			id	path	string	true	"Run id"
//	@Success		204	"Run deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete annotation failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /api/templates.
//
//	@Summary		List the active template registry
//	@Tags			templates
//	@Produce		json
//	@Success		200	{object}	TemplatesResponse
//	@Security		BearerAuth
//	@Router			/templates [get]
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	version, entries := h.svc.Templates(r.Context())
	writeJSON(w, http.StatusOK, TemplatesResponse{
		Version:   version,
		Templates: entries,
	})
}
