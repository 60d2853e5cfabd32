package joinrequests

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/repochat/internal/application/chat"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/presentation/utils"
)

type Handler struct {
	chat   chat.Service
	logger logging.Logger
}

func NewHandler(chatService chat.Service, logger logging.Logger) *Handler {
	return &Handler{
		chat:   chatService,
		logger: logger,
	}
}

// ListHandler returns the pending join requests for rooms the caller owns.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	reqs, err := h.chat.ListJoinRequests(r.Context(), caller.Login)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	if reqs == nil {
		reqs = []domain.JoinRequest{}
	}
	json.Write(w, http.StatusOK, joinRequestsResponse{Requests: reqs})
}

func (h *Handler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	resolved, err := h.chat.ResolveJoinRequest(r.Context(), caller, chi.URLParam(r, "requestId"), decision)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, resolved)
}
