package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
)

// AppendMessage pushes msg onto the room's message log in a single
// read-modify-write. A concurrent append surfaces as
// domain.ErrVersionConflict. Appending a message id already in the log is a
// no-op, so a retry after an ambiguous failure cannot duplicate it. The
// room's cached log is dropped on success.
func (s *service) AppendMessage(ctx context.Context, roomID string, msg domain.Message) error {
	owner, local, err := domain.ParseRoomID(roomID)
	if err != nil {
		return err
	}

	_, err = document.Update(ctx, s.docs, owner, workspace.RoomMessagesPath(local), domain.MessageLog{},
		func(log *domain.MessageLog) error {
			if log.Contains(msg.ID) {
				return document.ErrNoChange
			}
			*log = log.Append(msg, s.cfg.MessageLogCapacity)
			return nil
		})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cache.KindMessages, roomID)
	return nil
}

// SendMessage appends a new message from author, retrying exactly once if
// another writer got there first. A second conflict is reported as
// domain.ErrTryAgain.
func (s *service) SendMessage(ctx context.Context, author domain.Identity, roomID, content string) (*domain.Message, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Members.Contains(author.Login) {
		return nil, fmt.Errorf("%w: join the room before posting", domain.ErrForbidden)
	}

	msg, err := domain.NewMessage(author, content, domain.MessageTypeMessage)
	if err != nil {
		return nil, err
	}

	if err := s.appendOnceMore(ctx, room.ID, *msg); err != nil {
		return nil, err
	}

	s.publish(ctx, room.ID, *msg)
	return msg, nil
}

func (s *service) appendOnceMore(ctx context.Context, roomID string, msg domain.Message) error {
	err := s.AppendMessage(ctx, roomID, msg)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return err
	}

	s.logger.Debug(logging.Workflow, logging.Conflict, "message append conflicted, retrying once", map[logging.ExtraKey]any{
		logging.RoomID: roomID,
	})

	err = s.AppendMessage(ctx, roomID, msg)
	if errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("%w: %w", domain.ErrTryAgain, err)
	}
	return err
}

// publish hands the persisted message to the broadcaster. Delivery is best
// effort; the message is already stored.
func (s *service) publish(ctx context.Context, roomID string, msg domain.Message) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, roomID, msg); err != nil {
		s.logger.Warn(logging.Broadcast, logging.Publish, "failed to publish message", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// LoadMessages returns the room's message log. Private rooms are readable by
// members only. Concurrent cache misses for one room share a single read. A
// maxAge of cache.Bypass always reads through.
func (s *service) LoadMessages(ctx context.Context, viewer domain.Identity, roomID string, maxAge time.Duration) ([]domain.Message, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsPublic() && !room.Members.Contains(viewer.Login) {
		return nil, fmt.Errorf("%w: this room is private", domain.ErrForbidden)
	}

	if msgs, ok := cache.Load[domain.MessageLog](ctx, s.cache, cache.KindMessages, room.ID, maxAge); ok {
		return msgs, nil
	}

	v, err, _ := s.messageLoads.Do(room.ID, func() (any, error) {
		// Shared by every caller waiting on this room.
		ctx := context.WithoutCancel(ctx)
		gen := s.cache.Generation(ctx, cache.KindMessages, room.ID)
		log, _, err := document.Get(ctx, s.docs, room.Owner.Login, workspace.RoomMessagesPath(room.LocalName), domain.MessageLog{})
		if err != nil {
			return nil, err
		}
		s.remember(ctx, cache.KindMessages, room.ID, gen, log)
		return log, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.MessageLog), nil
}

// LoadNotices returns the system notices addressed to owner, such as
// incoming friend requests.
func (s *service) LoadNotices(ctx context.Context, owner domain.Identity, maxAge time.Duration) ([]domain.Message, error) {
	roomID := domain.FormatRoomID(owner.Login, systemRoom)
	if msgs, ok := cache.Load[domain.MessageLog](ctx, s.cache, cache.KindMessages, roomID, maxAge); ok {
		return msgs, nil
	}

	gen := s.cache.Generation(ctx, cache.KindMessages, roomID)
	log, _, err := document.Get(ctx, s.docs, owner.Login, workspace.RoomMessagesPath(systemRoom), domain.MessageLog{})
	if err != nil {
		return nil, err
	}
	s.remember(ctx, cache.KindMessages, roomID, gen, log)
	return log, nil
}

// appendNotice records a system notice in a room log and publishes it.
// Notices are informational, so failures are logged and swallowed.
func (s *service) appendNotice(ctx context.Context, roomID string, notice *domain.Message) {
	if err := s.appendOnceMore(ctx, roomID, *notice); err != nil {
		s.logger.Warn(logging.Workflow, logging.Publish, "failed to record room notice", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	s.publish(ctx, roomID, *notice)
}
