package messages

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/repochat/internal/application/chat"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/presentation/utils"
)

type Handler struct {
	chat   chat.Service
	maxAge time.Duration
	logger logging.Logger
}

// NewHandler serves message logs; maxAge bounds how stale a cached log may be
// unless the caller asks for ?fresh=true.
func NewHandler(chatService chat.Service, maxAge time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		chat:   chatService,
		maxAge: maxAge,
		logger: logger,
	}
}

func (h *Handler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomId")
	msgs, err := h.chat.LoadMessages(r.Context(), caller, roomID, h.requestMaxAge(r))
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, messagesResponse{RoomID: roomID, Messages: nonNil(msgs)})
}

func (h *Handler) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), caller, chi.URLParam(r, "roomId"), req.Content)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusCreated, msg)
}

// ListNoticesHandler returns the caller's system notices.
func (h *Handler) ListNoticesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	msgs, err := h.chat.LoadNotices(r.Context(), caller, h.requestMaxAge(r))
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, messagesResponse{Messages: nonNil(msgs)})
}

func (h *Handler) requestMaxAge(r *http.Request) time.Duration {
	if fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh")); fresh {
		return cache.Bypass
	}
	return h.maxAge
}

func nonNil(msgs []domain.Message) []domain.Message {
	if msgs == nil {
		return []domain.Message{}
	}
	return msgs
}
