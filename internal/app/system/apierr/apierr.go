// internal/app/system/apierr/apierr.go
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kinds = []struct {
	err    error
	status int
	code   string
}{
	{errs.ErrForbidden, http.StatusForbidden, "forbidden"},
	{errs.ErrInvalidTarget, http.StatusBadRequest, "invalid_target"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found"},
	{errs.ErrAlreadyInvited, http.StatusConflict, "already_invited"},
	{errs.ErrAlreadyMember, http.StatusConflict, "already_member"},
	{errs.ErrNotMember, http.StatusPreconditionFailed, "not_member"},
	{errs.ErrLastAdmin, http.StatusConflict, "last_admin"},
	{errs.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{errs.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{leasestore.ErrBusy, http.StatusServiceUnavailable, "busy"},
	{leasestore.ErrLost, http.StatusServiceUnavailable, "busy"},
	{poststore.ErrStaleBody, http.StatusConflict, "edit_conflict"},
}

// Classify returns the HTTP status and error code for err. Errors outside
// the known kinds are 500 "internal".
func Classify(err error) (int, string) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// Write sends err as a JSON error response. Known kinds carry their
// message to the caller; anything else is logged and hidden behind a
// generic message.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status, code := Classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}
		msg = "something went wrong"
	}
	JSON(w, status, Body{Error: code, Message: msg})
}

// Unauthorized sends the 401 used when no actor is present.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, Body{Error: "unauthorized", Message: "sign in required"})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
