package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/tagservice"
)

// Handler dispatches action calls.
type Handler struct {
	svc         *tagservice.Service
	actions     map[string]action
	authEnabled bool
	token       string
	metrics     *Metrics
}

// NewHandler creates a new Handler. metrics may be nil.
func NewHandler(svc *tagservice.Service, authEnabled bool, token string, metrics *Metrics) *Handler {
	h := &Handler{svc: svc, authEnabled: authEnabled, token: token, metrics: metrics}
	h.actions = h.registerActions()
	return h
}

// Action handles GET and POST /api/action/{name}.
//
//	@Summary		Call an action
//	@Tags			actions
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Action name"	Enums(tag_list, tag_show, tag_create, tag_delete, vocabulary_list, vocabulary_show, vocabulary_create, vocabulary_update, vocabulary_delete, package_create, package_show, package_list, package_delete)
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/action/{name} [post]
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, ok := h.actions[name]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("", errTypeBadRequest, "Action name not known: "+name, nil))
		return
	}
	if a.mutates {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusBadRequest, errorBody(a.help, errTypeBadRequest, "Action "+name+" requires POST", nil))
			return
		}
		if h.authEnabled && !tokenValid(r, h.token) {
			writeJSON(w, http.StatusForbidden, errorBody(a.help, errTypeAuth, "Access denied", nil))
			return
		}
	}

	p, err := decodeParams(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(a.help, errTypeBadRequest, err.Error(), nil))
		return
	}

	result, err := a.run(r.Context(), p)
	if err != nil {
		h.writeError(w, name, a.help, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody(a.help, result))
}

func (h *Handler) writeError(w http.ResponseWriter, name, help string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(help, errTypeValidation, "", formdata.FieldMessages(err)))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(help, errTypeNotFound, "Not found: "+err.Error(), nil))
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(help, errTypeIntegrity, err.Error(), nil))
	default:
		slog.Error("action failed", slog.String("action", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(help, errTypeInternal, "internal error", nil))
	}
}
