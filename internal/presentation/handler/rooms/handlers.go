package rooms

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/repochat/internal/application/chat"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/ws"
	"github.com/hilthontt/repochat/internal/presentation/utils"
)

type Handler struct {
	chat   chat.Service
	core   *ws.Core
	logger logging.Logger
}

func NewHandler(chatService chat.Service, core *ws.Core, logger logging.Logger) *Handler {
	return &Handler{
		chat:   chatService,
		core:   core,
		logger: logger,
	}
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var req chat.CreateRoomParams
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, err := h.chat.CreateRoom(r.Context(), caller, req)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusCreated, room)
}

// ListRoomsHandler lists the rooms in a workspace, the caller's own unless
// ?owner= names another.
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = caller.Login
	}

	rooms, err := h.chat.ListRooms(r.Context(), owner)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	if rooms == nil {
		rooms = []domain.RoomInfo{}
	}
	json.Write(w, http.StatusOK, roomsResponse{Rooms: rooms})
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	room, err := h.visibleRoom(r, caller)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, room)
}

func (h *Handler) UpdateRoomHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var patch domain.RoomPatch
	if err := json.Read(r, &patch); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, err := h.chat.UpdateRoom(r.Context(), caller, chi.URLParam(r, "roomId"), patch)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, room)
}

func (h *Handler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteRoom(r.Context(), caller, chi.URLParam(r, "roomId")); err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JoinRoomHandler answers 200 when the caller is a member afterwards and 202
// when a join request is waiting for the owner.
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if r.ContentLength != 0 {
		if err := json.Read(r, &req); err != nil {
			json.WriteValidationError(w, err)
			return
		}
	}

	result, err := h.chat.JoinRoom(r.Context(), chi.URLParam(r, "roomId"), caller, req.Note)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Status == chat.JoinStatusPending {
		status = http.StatusAccepted
	}
	json.Write(w, status, result)
}

func (h *Handler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	members, err := h.chat.RemoveMember(r.Context(), caller, chi.URLParam(r, "roomId"), chi.URLParam(r, "login"))
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, membersResponse{Members: members})
}

// SubscribeHandler upgrades to a websocket that receives every message
// persisted to the room from now on.
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	room, err := h.visibleRoom(r, caller)
	if err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	conn, err := h.core.Upgrade(w, r)
	if err != nil {
		h.logger.Warn(logging.Broadcast, logging.Lifecycle, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	if err := h.core.Serve(conn, room.ID, caller.Login); err != nil {
		h.logger.Warn(logging.Broadcast, logging.Lifecycle, "websocket subscription rejected", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// visibleRoom loads the room named in the path and hides private rooms from
// non-members.
func (h *Handler) visibleRoom(r *http.Request, caller domain.Identity) (*domain.Room, error) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		return nil, fmt.Errorf("%w: room ID is missing", domain.ErrInvalidInput)
	}

	room, err := h.chat.GetRoom(r.Context(), roomID)
	if err != nil {
		return nil, err
	}

	if !room.IsPublic() && !room.Members.Contains(caller.Login) {
		return nil, fmt.Errorf("%w: %s is not a member of %s", domain.ErrForbidden, caller.Login, roomID)
	}
	return room, nil
}
