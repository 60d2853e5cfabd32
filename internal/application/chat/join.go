package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
)

// JoinRoom adds requester to a public room directly. For a private room it
// files a join request in the owner's workspace, reusing a pending one for
// the same requester and room.
func (s *service) JoinRoom(ctx context.Context, roomID string, requester domain.Identity, note string) (*JoinResult, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.Members.Contains(requester.Login) {
		return &JoinResult{Status: JoinStatusJoined, Room: room}, nil
	}

	if room.IsPublic() {
		members, _, err := s.addMember(ctx, room, requester.AsMember(domain.RoleMember))
		if err != nil {
			return nil, err
		}
		room.Members = members

		s.logger.Info(logging.Workflow, logging.Membership, "member joined room", map[logging.ExtraKey]any{
			logging.RoomID: room.ID,
			logging.Owner:  requester.Login,
		})
		return &JoinResult{Status: JoinStatusJoined, Room: room}, nil
	}

	req, err := s.fileJoinRequest(ctx, room, requester, note)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Status: JoinStatusPending, Request: req}, nil
}

func (s *service) fileJoinRequest(ctx context.Context, room *domain.Room, requester domain.Identity, note string) (*domain.JoinRequest, error) {
	owner := room.Owner.Login

	existing, err := s.joinRequests(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		r := existing[i]
		if r.Status == domain.StatusPending && r.Room == room.ID && r.From.Login == requester.Login {
			return &r, nil
		}
	}

	req, err := domain.NewJoinRequest(requester, room.ID, note)
	if err != nil {
		return nil, err
	}
	if _, err := s.docs.Write(ctx, owner, workspace.JoinRequestPath(req.ID), req, ""); err != nil {
		return nil, fmt.Errorf("failed to file join request: %w", err)
	}
	s.invalidate(ctx, cache.KindJoinRequests, owner)

	s.logger.Info(logging.Workflow, logging.Membership, "join request filed", map[logging.ExtraKey]any{
		logging.RoomID:    room.ID,
		logging.RequestID: req.ID,
		logging.Owner:     requester.Login,
	})

	s.appendNotice(ctx, room.ID, domain.NewSystemMessage(
		fmt.Sprintf("%s asked to join the room", displayName(requester)),
		domain.MessageTypeJoinRequest,
	))
	return req, nil
}

// ListJoinRequests returns the owner's pending join requests, oldest first.
func (s *service) ListJoinRequests(ctx context.Context, owner string) ([]domain.JoinRequest, error) {
	owner, err := domain.ValidateLogin(owner)
	if err != nil {
		return nil, err
	}

	if pending, ok := cache.Load[[]domain.JoinRequest](ctx, s.cache, cache.KindJoinRequests, owner, s.cfg.RequestsMaxAge); ok {
		return pending, nil
	}

	gen := s.cache.Generation(ctx, cache.KindJoinRequests, owner)
	all, err := s.joinRequests(ctx, owner)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.JoinRequest, 0, len(all))
	for _, r := range all {
		if r.Status == domain.StatusPending {
			pending = append(pending, r)
		}
	}

	s.remember(ctx, cache.KindJoinRequests, owner, gen, pending)
	return pending, nil
}

// joinRequests reads every join request document of owner. Documents that
// fail to decode are skipped.
func (s *service) joinRequests(ctx context.Context, owner string) ([]domain.JoinRequest, error) {
	entries, err := s.docs.List(ctx, owner, workspace.DirJoinRequests)
	if err != nil {
		return nil, err
	}

	out := make([]domain.JoinRequest, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != blobstore.EntryFile || workspace.IsPlaceholder(entry.Name) {
			continue
		}

		path := workspace.DirJoinRequests + "/" + entry.Name
		var req domain.JoinRequest
		version, err := s.docs.Read(ctx, owner, path, &req)
		if errors.Is(err, domain.ErrCorruptDocument) {
			s.logger.Warn(logging.Workflow, logging.Decode, "skipping malformed join request", map[logging.ExtraKey]any{
				logging.Owner:        owner,
				logging.Path:         path,
				logging.ErrorMessage: err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if version == "" {
			continue
		}
		out = append(out, req)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ResolveJoinRequest accepts or rejects a pending request. On accept the
// requester is added to the member list before the status is recorded, so a
// failure in between leaves the request pending and a second call completes
// it. The status is written at the version first read; if a concurrent
// resolution got there first, a member added by this call is removed again
// and domain.ErrRequestResolved is returned.
func (s *service) ResolveJoinRequest(ctx context.Context, owner domain.Identity, requestID string, decision domain.RequestStatus) (*domain.JoinRequest, error) {
	if !decision.IsTerminal() {
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", domain.ErrInvalidInput)
	}

	path := workspace.JoinRequestPath(requestID)
	var req domain.JoinRequest
	version, err := s.docs.Read(ctx, owner.Login, path, &req)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, requestID)
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request is %s", domain.ErrRequestResolved, req.Status)
	}

	roomOwner, _, err := domain.ParseRoomID(req.Room)
	if err != nil {
		return nil, err
	}
	if roomOwner != owner.Login {
		return nil, fmt.Errorf("%w: only the room owner can resolve join requests", domain.ErrForbidden)
	}

	var (
		room  *domain.Room
		added bool
	)
	if decision == domain.StatusAccepted {
		room, err = s.loadRoom(ctx, req.Room)
		if err != nil {
			return nil, err
		}
		if _, added, err = s.addMember(ctx, room, req.From.AsMember(domain.RoleMember)); err != nil {
			return nil, err
		}
	}

	resolved := req
	if err := resolved.Resolve(decision); err != nil {
		return nil, err
	}
	if _, err := s.docs.Write(ctx, owner.Login, path, resolved, version); err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, s.joinResolutionLost(ctx, owner.Login, path, room, req.From.Login, added, err)
	}
	s.invalidate(ctx, cache.KindJoinRequests, owner.Login)

	s.logger.Info(logging.Workflow, logging.Membership, "join request resolved", map[logging.ExtraKey]any{
		logging.RoomID:    req.Room,
		logging.RequestID: requestID,
	})

	if room != nil {
		s.appendNotice(ctx, room.ID, domain.NewSystemMessage(
			fmt.Sprintf("%s joined the room", displayName(req.From)),
			domain.MessageTypeSystem,
		))
	}
	return &resolved, nil
}

// joinResolutionLost handles a status write that lost to another writer. If
// the request ended up rejected, the member this call added is taken out.
func (s *service) joinResolutionLost(ctx context.Context, owner, path string, room *domain.Room, login string, added bool, conflict error) error {
	var current domain.JoinRequest
	if _, err := s.docs.Read(ctx, owner, path, &current); err != nil {
		return err
	}
	if !current.Status.IsTerminal() {
		return conflict
	}

	if added && current.Status == domain.StatusRejected {
		s.logger.Warn(logging.Workflow, logging.Conflict, "join request rejected concurrently, removing member", map[logging.ExtraKey]any{
			logging.RoomID: room.ID,
			logging.Owner:  login,
		})
		if _, err := s.removeMember(ctx, room, login); err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return fmt.Errorf("failed to undo membership of %s: %w", login, err)
		}
	}
	return fmt.Errorf("%w: request is %s", domain.ErrRequestResolved, current.Status)
}

// addMember appends m to the room's member list; a member already present
// leaves the document untouched and added is false.
func (s *service) addMember(ctx context.Context, room *domain.Room, m domain.Member) (members domain.MemberList, added bool, err error) {
	members, err = document.Update(ctx, s.docs, room.Owner.Login, workspace.RoomMembersPath(room.LocalName), domain.MemberList{},
		func(members *domain.MemberList) error {
			next, ok := members.Add(m)
			if !ok {
				return document.ErrNoChange
			}
			*members = next
			added = true
			return nil
		})
	if err != nil {
		return nil, false, err
	}
	s.invalidate(ctx, cache.KindRoom, room.ID)
	return members, added, nil
}

func displayName(id domain.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Login
}
