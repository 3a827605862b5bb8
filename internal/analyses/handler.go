package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/pkg/handlers"
	"github.com/JaimeStill/seedlab/pkg/pagination"
	"github.com/JaimeStill/seedlab/pkg/routes"
)

// Handler provides HTTP endpoints for analysis and replicate operations.
type Handler struct {
	sys         System
	logger      *slog.Logger
	pagination  pagination.Config
	maxBodySize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and request body limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxBodySize int64,
) *Handler {
	return &Handler{
		sys:         sys,
		logger:      logger.With("handler", "analyses"),
		pagination:  pagination,
		maxBodySize: maxBodySize,
	}
}

// Routes returns the route groups for analysis endpoints. Replicates are
// addressed by their own id under a sibling prefix.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/analyses",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "POST", Pattern: "", Handler: h.Create},
					{Method: "POST", Pattern: "/search", Handler: h.Search},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "GET", Pattern: "/{id}/statistics", Handler: h.Statistics},
					{Method: "GET", Pattern: "/{id}/replicates", Handler: h.Replicates},
					{Method: "POST", Pattern: "/{id}/replicates", Handler: h.AddReplicate},
					{Method: "PUT", Pattern: "/{id}/rounded-value", Handler: h.SetRoundedValue},
					{Method: "POST", Pattern: "/{id}/finalize", Handler: h.Finalize},
					{Method: "POST", Pattern: "/{id}/approve", Handler: h.Approve},
					{Method: "POST", Pattern: "/{id}/repeat", Handler: h.MarkForRepeat},
					{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate},
				},
			},
			{
				Prefix: "/replicates",
				Routes: []routes.Route{
					{Method: "PUT", Pattern: "/{id}", Handler: h.UpdateReplicate},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteReplicate},
				},
			},
		},
	}
}

// List returns a paginated list of analyses with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching analyses.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Create registers a new analysis from a CreateCommand JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	a, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, a)
}

// Find returns a single analysis by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	a, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// Statistics returns the aggregate view of an analysis, including whether it may be finalized.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	s, err := h.sys.Statistics(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Replicates returns every replicate of an analysis ordered by index.
func (h *Handler) Replicates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rs, err := h.sys.Replicates(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rs)
}

// AddReplicate records a measured value and returns the acceptance outcome.
func (h *Handler) AddReplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ReplicateCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	result, err := h.sys.AddReplicate(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// UpdateReplicate changes the value of a replicate and returns the re-evaluated outcome.
func (h *Handler) UpdateReplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ReplicateCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	result, err := h.sys.UpdateReplicate(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// DeleteReplicate removes a replicate. The acting role is read from the actor query parameter.
func (h *Handler) DeleteReplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	actor := Role(r.URL.Query().Get("actor"))

	result, err := h.sys.DeleteReplicate(r.Context(), id, actor)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SetRoundedValue stores the manually reviewed final value from a RoundedValueCommand JSON body.
func (h *Handler) SetRoundedValue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd RoundedValueCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	a, err := h.sys.SetFinalRoundedValue(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// Finalize closes the working phase of an analysis.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sys.Finalize)
}

// Approve accepts an analysis awaiting review.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sys.Approve)
}

// MarkForRepeat sends an analysis back for repetition.
func (h *Handler) MarkForRepeat(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sys.MarkForRepeat)
}

// Deactivate retires an analysis.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sys.Deactivate)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd TransitionCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	a, err := fn(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		handlers.RespondError(w, h.logger, status, err)
		return false
	}
	return true
}
