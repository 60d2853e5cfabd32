package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
)

// systemRoom holds notices addressed to a user; it has no info document.
const systemRoom = "system"

// CreateRoom writes the member list and empty message log before the info
// document, so a half-created room never shows up in listings.
func (s *service) CreateRoom(ctx context.Context, owner domain.Identity, params CreateRoomParams) (*domain.Room, error) {
	room, err := domain.NewRoom(owner, params.Name, params.Description, params.Visibility)
	if err != nil {
		return nil, err
	}

	if err := s.workspaces.EnsureWorkspace(ctx, owner.Login); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	local := room.LocalName
	if _, err := s.docs.Write(ctx, owner.Login, workspace.RoomMembersPath(local), room.Members, ""); err != nil {
		return nil, createFailed("room members", room.ID, err)
	}
	if _, err := s.docs.Write(ctx, owner.Login, workspace.RoomMessagesPath(local), domain.MessageLog{}, ""); err != nil {
		return nil, createFailed("room messages", room.ID, err)
	}
	if _, err := s.docs.Write(ctx, owner.Login, workspace.RoomInfoPath(local), room.RoomInfo, ""); err != nil {
		return nil, createFailed("room", room.ID, err)
	}

	s.invalidate(ctx, cache.KindRooms, owner.Login)

	s.logger.Info(logging.Workflow, logging.Lifecycle, "room created", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
		logging.Owner:  owner.Login,
	})
	return room, nil
}

// GetRoom serves from the cache when the entry is younger than RoomsMaxAge.
func (s *service) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	owner, local, err := domain.ParseRoomID(roomID)
	if err != nil {
		return nil, err
	}
	roomID = domain.FormatRoomID(owner, local)

	if room, ok := cache.Load[domain.Room](ctx, s.cache, cache.KindRoom, roomID, s.cfg.RoomsMaxAge); ok {
		return &room, nil
	}

	gen := s.cache.Generation(ctx, cache.KindRoom, roomID)
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, cache.KindRoom, roomID, gen, room)
	return room, nil
}

// loadRoom always reads through to the store.
func (s *service) loadRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	owner, local, err := domain.ParseRoomID(roomID)
	if err != nil {
		return nil, err
	}

	var info domain.RoomInfo
	version, err := s.docs.Read(ctx, owner, workspace.RoomInfoPath(local), &info)
	if err != nil {
		return nil, err
	}
	if version == "" || info.Deleted {
		return nil, roomNotFound(roomID)
	}

	members := domain.MemberList{}
	if _, err := s.docs.Read(ctx, owner, workspace.RoomMembersPath(local), &members); err != nil {
		return nil, err
	}

	return &domain.Room{RoomInfo: info, Members: members}, nil
}

func (s *service) ListRooms(ctx context.Context, owner string) ([]domain.RoomInfo, error) {
	owner, err := domain.ValidateLogin(owner)
	if err != nil {
		return nil, err
	}

	if rooms, ok := cache.Load[[]domain.RoomInfo](ctx, s.cache, cache.KindRooms, owner, s.cfg.RoomsMaxAge); ok {
		return rooms, nil
	}

	gen := s.cache.Generation(ctx, cache.KindRooms, owner)
	entries, err := s.docs.List(ctx, owner, workspace.DirChats)
	if err != nil {
		return nil, err
	}

	rooms := make([]domain.RoomInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != blobstore.EntryDir || entry.Name == systemRoom {
			continue
		}

		var info domain.RoomInfo
		version, err := s.docs.Read(ctx, owner, workspace.RoomInfoPath(entry.Name), &info)
		if errors.Is(err, domain.ErrCorruptDocument) {
			s.logger.Warn(logging.Workflow, logging.Decode, "skipping unreadable room", map[logging.ExtraKey]any{
				logging.Owner:        owner,
				logging.Path:         workspace.RoomInfoPath(entry.Name),
				logging.ErrorMessage: err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if version == "" || info.Deleted {
			continue
		}
		rooms = append(rooms, info)
	}

	s.remember(ctx, cache.KindRooms, owner, gen, rooms)
	return rooms, nil
}

func (s *service) UpdateRoom(ctx context.Context, actor domain.Identity, roomID string, patch domain.RoomPatch) (*domain.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.CanManage(actor.Login) {
		s.logger.Warn(logging.Workflow, logging.Authorization, "unauthorized room update attempt", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
			logging.Owner:  actor.Login,
		})
		return nil, fmt.Errorf("%w: only the owner or an admin can change room settings", domain.ErrForbidden)
	}

	info, err := document.Update(ctx, s.docs, room.Owner.Login, workspace.RoomInfoPath(room.LocalName), domain.RoomInfo{},
		func(info *domain.RoomInfo) error {
			if info.ID == "" || info.Deleted {
				return roomNotFound(roomID)
			}
			return info.Apply(patch)
		})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cache.KindRoom, room.ID)
	s.invalidate(ctx, cache.KindRooms, room.Owner.Login)

	room.RoomInfo = info
	return room, nil
}

// DeleteRoom marks the room deleted; its documents stay in place.
func (s *service) DeleteRoom(ctx context.Context, actor domain.Identity, roomID string) error {
	owner, local, err := domain.ParseRoomID(roomID)
	if err != nil {
		return err
	}
	if owner != actor.Login {
		return fmt.Errorf("%w: only the room owner can delete the room", domain.ErrForbidden)
	}

	_, err = document.Update(ctx, s.docs, owner, workspace.RoomInfoPath(local), domain.RoomInfo{},
		func(info *domain.RoomInfo) error {
			if info.ID == "" || info.Deleted {
				return roomNotFound(roomID)
			}
			info.MarkDeleted()
			return nil
		})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cache.KindRoom, roomID)
	s.invalidate(ctx, cache.KindRooms, owner)
	s.invalidate(ctx, cache.KindMessages, roomID)

	s.logger.Info(logging.Workflow, logging.Lifecycle, "room deleted", map[logging.ExtraKey]any{
		logging.RoomID: roomID,
	})
	return nil
}

// RemoveMember lets a member leave, or an owner or admin remove someone.
// The owner can never be removed.
func (s *service) RemoveMember(ctx context.Context, actor domain.Identity, roomID, login string) (domain.MemberList, error) {
	login, err := domain.ValidateLogin(login)
	if err != nil {
		return nil, err
	}

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsOwner(login) {
		return nil, fmt.Errorf("%w: the room owner cannot be removed", domain.ErrForbidden)
	}
	if login != actor.Login && !room.CanManage(actor.Login) {
		return nil, fmt.Errorf("%w: only the owner or an admin can remove members", domain.ErrForbidden)
	}

	return s.removeMember(ctx, room, login)
}

func (s *service) removeMember(ctx context.Context, room *domain.Room, login string) (domain.MemberList, error) {
	members, err := document.Update(ctx, s.docs, room.Owner.Login, workspace.RoomMembersPath(room.LocalName), domain.MemberList{},
		func(members *domain.MemberList) error {
			next, removed := members.Remove(login)
			if !removed {
				return fmt.Errorf("%w: %s", domain.ErrMemberNotFound, login)
			}
			*members = next
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, cache.KindRoom, room.ID)
	return members, nil
}

// createFailed reports a create-only write that found a document in place
// as domain.ErrRoomAlreadyExists.
func createFailed(what, roomID string, err error) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("%w: %s", domain.ErrRoomAlreadyExists, roomID)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

func roomNotFound(roomID string) error {
	return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
}
