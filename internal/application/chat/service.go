// Package chat implements rooms, membership, message logs and the room
// join workflow on top of the document repository.
package chat

import (
	"context"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"golang.org/x/sync/singleflight"
)

// Broadcaster fans a persisted message out to live subscribers of a room.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, msg domain.Message) error
}

// Workspaces provisions a user's container on first use.
type Workspaces interface {
	EnsureWorkspace(ctx context.Context, owner string) error
}

type Config struct {
	MessageLogCapacity int
	RoomsMaxAge        time.Duration
	RequestsMaxAge     time.Duration
}

type JoinStatus string

const (
	JoinStatusJoined  JoinStatus = "joined"
	JoinStatusPending JoinStatus = "pending"
)

type JoinResult struct {
	Status  JoinStatus          `json:"status"`
	Room    *domain.Room        `json:"room,omitempty"`
	Request *domain.JoinRequest `json:"request,omitempty"`
}

type CreateRoomParams struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Visibility  domain.Visibility `json:"visibility"`
}

type Service interface {
	CreateRoom(ctx context.Context, owner domain.Identity, params CreateRoomParams) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, owner string) ([]domain.RoomInfo, error)
	UpdateRoom(ctx context.Context, actor domain.Identity, roomID string, patch domain.RoomPatch) (*domain.Room, error)
	DeleteRoom(ctx context.Context, actor domain.Identity, roomID string) error
	RemoveMember(ctx context.Context, actor domain.Identity, roomID, login string) (domain.MemberList, error)

	AppendMessage(ctx context.Context, roomID string, msg domain.Message) error
	SendMessage(ctx context.Context, author domain.Identity, roomID, content string) (*domain.Message, error)
	LoadMessages(ctx context.Context, viewer domain.Identity, roomID string, maxAge time.Duration) ([]domain.Message, error)
	LoadNotices(ctx context.Context, owner domain.Identity, maxAge time.Duration) ([]domain.Message, error)

	JoinRoom(ctx context.Context, roomID string, requester domain.Identity, note string) (*JoinResult, error)
	ListJoinRequests(ctx context.Context, owner string) ([]domain.JoinRequest, error)
	ResolveJoinRequest(ctx context.Context, owner domain.Identity, requestID string, decision domain.RequestStatus) (*domain.JoinRequest, error)
}

type service struct {
	docs        document.Store
	workspaces  Workspaces
	cache       cache.Cache
	broadcaster Broadcaster
	cfg         Config
	logger      logging.Logger

	messageLoads singleflight.Group
}

func NewService(
	docs document.Store,
	workspaces Workspaces,
	c cache.Cache,
	broadcaster Broadcaster,
	cfg Config,
	logger logging.Logger,
) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &service{
		docs:        docs,
		workspaces:  workspaces,
		cache:       c,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// invalidate drops cache entries after a confirmed write. A failure only
// costs freshness, so it is logged.
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
