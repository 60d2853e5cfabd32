package friends

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/repochat/internal/application/social"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/presentation/utils"
)

type Handler struct {
	social         social.Service
	contactsMaxAge time.Duration
	logger         logging.Logger
}

func NewHandler(socialService social.Service, contactsMaxAge time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		social:         socialService,
		contactsMaxAge: contactsMaxAge,
		logger:         logger,
	}
}

func (h *Handler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	contacts, err := h.social.ListContacts(r.Context(), caller.Login, h.contactsMaxAge)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, contactsResponse{Contacts: contacts})
}

func (h *Handler) RemoveContactHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	if err := h.social.RemoveContact(r.Context(), caller, chi.URLParam(r, "login")); err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	reqs, err := h.social.ListPendingRequests(r.Context(), caller.Login)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	if reqs == nil {
		reqs = []domain.FriendRequest{}
	}
	json.Write(w, http.StatusOK, friendRequestsResponse{Requests: reqs})
}

func (h *Handler) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	sent, err := h.social.SendFriendRequest(r.Context(), caller, req.To, req.Note)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusCreated, sent)
}

func (h *Handler) ResolveRequestHandler(w http.ResponseWriter, r *http.Request) {
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

	resolved, err := h.social.ResolveFriendRequest(r.Context(), caller, chi.URLParam(r, "requestId"), decision)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, resolved)
}
