package utils

import (
	"errors"
	"net/http"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
)

// WriteServiceError maps a service failure onto a status code and a message
// safe to show to the user.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status, msg := classify(err)

	if status >= http.StatusInternalServerError {
		logger.Error(logging.RequestResponse, logging.ExternalService, "request failed", map[logging.ExtraKey]any{
			logging.Method:       r.Method,
			logging.Path:         r.URL.Path,
			logging.StatusCode:   status,
			logging.ErrorMessage: err.Error(),
		})
	}

	json.WriteError(w, status, err, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, "room does not exist"
	case errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound, "request does not exist"
	case errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound, "member does not exist"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "resource does not exist"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "you do not have access"
	case errors.Is(err, domain.ErrTryAgain):
		return http.StatusConflict, "message may not have been sent, please retry"
	case errors.Is(err, domain.ErrRoomAlreadyExists):
		return http.StatusConflict, "room already exists"
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "the resource changed, please retry"
	case errors.Is(err, domain.ErrRequestResolved):
		return http.StatusConflict, "request was already resolved"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "request cannot be resolved that way"
	case errors.Is(err, domain.ErrAlreadyFriends):
		return http.StatusConflict, "you are already friends"
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrOperationFailed), errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, "the storage service is busy, please try again shortly"
	case errors.Is(err, domain.ErrCorruptDocument):
		return http.StatusInternalServerError, "stored data could not be read"
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}
