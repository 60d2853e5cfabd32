// Package social implements friend requests and contact lists. Requests
// live in the recipient's workspace; contacts in each user's config
// document.
package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
)

// systemRoom is the reserved per-user room that receives notices.
const systemRoom = "system"

type Workspaces interface {
	EnsureWorkspace(ctx context.Context, owner string) error
}

// Notices appends a message to a room log. The chat service satisfies it.
type Notices interface {
	AppendMessage(ctx context.Context, roomID string, msg domain.Message) error
}

type Config struct {
	SystemNotices  bool
	RequestsMaxAge time.Duration
}

type Service interface {
	SendFriendRequest(ctx context.Context, from domain.Identity, toLogin, note string) (*domain.FriendRequest, error)
	ListPendingRequests(ctx context.Context, owner string) ([]domain.FriendRequest, error)
	ResolveFriendRequest(ctx context.Context, owner domain.Identity, requestID string, decision domain.RequestStatus) (*domain.FriendRequest, error)
	ListContacts(ctx context.Context, owner string, maxAge time.Duration) ([]domain.Contact, error)
	RemoveContact(ctx context.Context, owner domain.Identity, login string) error
}

type service struct {
	docs       document.Store
	workspaces Workspaces
	cache      cache.Cache
	notices    Notices
	cfg        Config
	logger     logging.Logger
}

func NewService(docs document.Store, workspaces Workspaces, c cache.Cache, notices Notices, cfg Config, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &service{
		docs:       docs,
		workspaces: workspaces,
		cache:      c,
		notices:    notices,
		cfg:        cfg,
		logger:     logger,
	}
}

// SendFriendRequest files a request in the recipient's workspace. A pending
// request from the same sender is returned instead of filing a second one.
func (s *service) SendFriendRequest(ctx context.Context, from domain.Identity, toLogin, note string) (*domain.FriendRequest, error) {
	req, err := domain.NewFriendRequest(from, toLogin, note)
	if err != nil {
		return nil, err
	}
	to := req.To

	if err := s.workspaces.EnsureWorkspace(ctx, to); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace of %s: %w", to, err)
	}

	recipient, _, err := document.Get(ctx, s.docs, to, workspace.ConfigPath, domain.NewUserConfig())
	if err != nil {
		return nil, err
	}
	if recipient.HasContact(from.Login) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyFriends, to)
	}

	existing, err := s.requests(ctx, to)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		r := existing[i]
		if r.Status == domain.StatusPending && r.From.Login == from.Login {
			return &r, nil
		}
	}

	if _, err := s.docs.Write(ctx, to, workspace.FriendRequestPath(req.ID), req, ""); err != nil {
		return nil, fmt.Errorf("failed to send friend request: %w", err)
	}
	s.invalidate(ctx, cache.KindFriendRequests, to)

	s.logger.Info(logging.Workflow, logging.Membership, "friend request sent", map[logging.ExtraKey]any{
		logging.RequestID: req.ID,
		logging.Owner:     to,
	})

	if s.cfg.SystemNotices && s.notices != nil {
		s.notify(ctx, to, fmt.Sprintf("%s sent you a friend request", displayName(from)))
	}
	return req, nil
}

func (s *service) notify(ctx context.Context, owner, text string) {
	roomID := domain.FormatRoomID(owner, systemRoom)
	notice := domain.NewSystemMessage(text, domain.MessageTypeSystem)
	if err := s.notices.AppendMessage(ctx, roomID, *notice); err != nil {
		s.logger.Warn(logging.Workflow, logging.Publish, "failed to record notice", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// ListPendingRequests returns the owner's pending friend requests, oldest
// first.
func (s *service) ListPendingRequests(ctx context.Context, owner string) ([]domain.FriendRequest, error) {
	owner, err := domain.ValidateLogin(owner)
	if err != nil {
		return nil, err
	}

	if pending, ok := cache.Load[[]domain.FriendRequest](ctx, s.cache, cache.KindFriendRequests, owner, s.cfg.RequestsMaxAge); ok {
		return pending, nil
	}

	gen := s.cache.Generation(ctx, cache.KindFriendRequests, owner)
	all, err := s.requests(ctx, owner)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.FriendRequest, 0, len(all))
	for _, r := range all {
		if r.Status == domain.StatusPending {
			pending = append(pending, r)
		}
	}

	s.remember(ctx, cache.KindFriendRequests, owner, gen, pending)
	return pending, nil
}

func (s *service) requests(ctx context.Context, owner string) ([]domain.FriendRequest, error) {
	entries, err := s.docs.List(ctx, owner, workspace.DirFriendRequests)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FriendRequest, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != blobstore.EntryFile || workspace.IsPlaceholder(entry.Name) {
			continue
		}

		path := workspace.DirFriendRequests + "/" + entry.Name
		var req domain.FriendRequest
		version, err := s.docs.Read(ctx, owner, path, &req)
		if errors.Is(err, domain.ErrCorruptDocument) {
			s.logger.Warn(logging.Workflow, logging.Decode, "skipping malformed friend request", map[logging.ExtraKey]any{
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

// ResolveFriendRequest accepts or rejects a pending request addressed to
// owner. Accepting adds each party to the other's contacts before the status
// is recorded; both additions are no-ops when already present, so calling
// again after a partial failure finishes the job. The status is written at
// the version first read; if a concurrent rejection won, the contacts added
// by this call are removed again.
func (s *service) ResolveFriendRequest(ctx context.Context, owner domain.Identity, requestID string, decision domain.RequestStatus) (*domain.FriendRequest, error) {
	if !decision.IsTerminal() {
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", domain.ErrInvalidInput)
	}

	path := workspace.FriendRequestPath(requestID)
	var req domain.FriendRequest
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
	if req.To != owner.Login {
		return nil, fmt.Errorf("%w: request is addressed to someone else", domain.ErrForbidden)
	}

	var addedHere, addedThere bool
	if decision == domain.StatusAccepted {
		if addedHere, err = s.addContact(ctx, owner.Login, req.From); err != nil {
			return nil, err
		}
		if err := s.workspaces.EnsureWorkspace(ctx, req.From.Login); err != nil {
			return nil, fmt.Errorf("failed to prepare workspace of %s: %w", req.From.Login, err)
		}
		if addedThere, err = s.addContact(ctx, req.From.Login, owner); err != nil {
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
		var current domain.FriendRequest
		if _, readErr := s.docs.Read(ctx, owner.Login, path, &current); readErr != nil {
			return nil, readErr
		}
		if !current.Status.IsTerminal() {
			return nil, err
		}
		if current.Status == domain.StatusRejected {
			if err := s.undoContacts(ctx, owner.Login, req.From.Login, addedHere, addedThere); err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: request is %s", domain.ErrRequestResolved, current.Status)
	}
	s.invalidate(ctx, cache.KindFriendRequests, owner.Login)

	s.logger.Info(logging.Workflow, logging.Membership, "friend request resolved", map[logging.ExtraKey]any{
		logging.RequestID: requestID,
		logging.Owner:     owner.Login,
	})

	if decision == domain.StatusAccepted && s.cfg.SystemNotices && s.notices != nil {
		s.notify(ctx, req.From.Login, fmt.Sprintf("%s accepted your friend request", displayName(owner)))
	}
	return &resolved, nil
}

// undoContacts reverts the contact additions of an accept that lost to a
// concurrent rejection.
func (s *service) undoContacts(ctx context.Context, owner, from string, addedHere, addedThere bool) error {
	s.logger.Warn(logging.Workflow, logging.Conflict, "friend request rejected concurrently, removing contacts", map[logging.ExtraKey]any{
		logging.Owner: owner,
	})
	if addedThere {
		if _, err := s.removeContact(ctx, from, owner); err != nil {
			return err
		}
	}
	if addedHere {
		if _, err := s.removeContact(ctx, owner, from); err != nil {
			return err
		}
	}
	return nil
}

// addContact reports whether who was newly added to owner's contacts.
func (s *service) addContact(ctx context.Context, owner string, who domain.Identity) (bool, error) {
	added := false
	_, err := document.Update(ctx, s.docs, owner, workspace.ConfigPath, domain.NewUserConfig(),
		func(cfg *domain.UserConfig) error {
			if !cfg.AddContact(who) {
				return document.ErrNoChange
			}
			added = true
			return nil
		})
	if err != nil {
		return false, fmt.Errorf("failed to add %s to contacts of %s: %w", who.Login, owner, err)
	}
	s.invalidate(ctx, cache.KindContacts, owner)
	return added, nil
}

func (s *service) removeContact(ctx context.Context, owner, login string) (bool, error) {
	removed := false
	_, err := document.Update(ctx, s.docs, owner, workspace.ConfigPath, domain.NewUserConfig(),
		func(cfg *domain.UserConfig) error {
			if !cfg.RemoveContact(login) {
				return document.ErrNoChange
			}
			removed = true
			return nil
		})
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from contacts of %s: %w", login, owner, err)
	}
	s.invalidate(ctx, cache.KindContacts, owner)
	return removed, nil
}

func (s *service) ListContacts(ctx context.Context, owner string, maxAge time.Duration) ([]domain.Contact, error) {
	owner, err := domain.ValidateLogin(owner)
	if err != nil {
		return nil, err
	}

	if contacts, ok := cache.Load[[]domain.Contact](ctx, s.cache, cache.KindContacts, owner, maxAge); ok {
		return contacts, nil
	}

	gen := s.cache.Generation(ctx, cache.KindContacts, owner)
	cfg, _, err := document.Get(ctx, s.docs, owner, workspace.ConfigPath, domain.NewUserConfig())
	if err != nil {
		return nil, err
	}
	contacts := cfg.Contacts
	if contacts == nil {
		contacts = []domain.Contact{}
	}

	s.remember(ctx, cache.KindContacts, owner, gen, contacts)
	return contacts, nil
}

// RemoveContact ends a friendship on both sides. The counterpart's list is
// updated first so a retry after a partial failure still sees the contact
// locally.
func (s *service) RemoveContact(ctx context.Context, owner domain.Identity, login string) error {
	login, err := domain.ValidateLogin(login)
	if err != nil {
		return err
	}

	removedThere, err := s.removeContact(ctx, login, owner.Login)
	if err != nil {
		return err
	}
	removedHere, err := s.removeContact(ctx, owner.Login, login)
	if err != nil {
		return err
	}

	if !removedHere && !removedThere {
		return fmt.Errorf("%w: %s is not a contact", domain.ErrNotFound, login)
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, kind cache.Kind, key string) {
	if err := s.cache.Invalidate(ctx, kind, key); err != nil {
		s.logger.Warn(logging.Cache, logging.ExternalService, "cache invalidation failed", map[logging.ExtraKey]any{
			logging.Path:         string(kind) + ":" + key,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// remember caches v unless the key was invalidated after gen was taken.
func (s *service) remember(ctx context.Context, kind cache.Kind, key string, gen cache.Generation, v any) {
	if err := cache.Store(ctx, s.cache, kind, key, gen, v); err != nil {
		s.logger.Warn(logging.Cache, logging.ExternalService, "cache write failed", map[logging.ExtraKey]any{
			logging.Path:         string(kind) + ":" + key,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func displayName(id domain.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Login
}
