// Package endpoint holds the request plumbing shared by the controller
// packages.
package endpoint

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/middleware"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/responses"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

// Func is a handler body: it returns the success status and payload, or
// an error rendered through the shared envelope.
type Func func(r *http.Request) (int, any, error)

func OK(body any) (int, any, error)      { return http.StatusOK, body, nil }
func Created(body any) (int, any, error) { return http.StatusCreated, body, nil }
func Fail(err error) (int, any, error)   { return 0, nil, err }

// Handle adapts fn. When wired is false the dependency named by what was
// never constructed and every call answers 500.
func Handle(logg *logger.Logger, what string, wired bool, fn Func, opts ...responses.ErrorOption) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !wired {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" service unavailable"))
			return
		}
		status, body, err := fn(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err, opts...)
			return
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}

// CallerID is the authenticated user; anonymous callers get 401.
func CallerID(r *http.Request) (uuid.UUID, error) {
	id, found := middleware.UserUUIDFromContext(r.Context())
	if !found {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return id, nil
}

func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

// CallerAnd resolves the caller together with one uuid path parameter.
func CallerAnd(r *http.Request, param string) (uuid.UUID, uuid.UUID, error) {
	caller, err := CallerID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := UUIDParam(r, param)
	return caller, id, err
}

// PageParams reads ?limit= and ?cursor=.
func PageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
