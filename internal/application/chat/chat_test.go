package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/cache"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/retry"
	"github.com/hilthontt/repochat/internal/infrastructure/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	published []domain.Message
	err       error
}

func (b *recordingBroadcaster) Publish(_ context.Context, _ string, msg domain.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
	return b.err
}

func (b *recordingBroadcaster) messages() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Message(nil), b.published...)
}

type fixture struct {
	svc         Service
	store       *blobstore.MemoryStore
	docs        *document.Repository
	broadcaster *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.FromZap(zaptest.NewLogger(t))
	store := blobstore.NewMemoryStore()
	policy := retry.NewPolicy(3, 0, logger, nil)
	docs := document.NewRepository(store, policy, logger)
	provisioner := workspace.NewProvisioner(store, docs, policy, logger)
	broadcaster := &recordingBroadcaster{}

	svc := NewService(docs, provisioner, cache.NewMemory(1), broadcaster, Config{
		MessageLogCapacity: 100,
		RoomsMaxAge:        time.Minute,
		RequestsMaxAge:     time.Minute,
	}, logger)

	return &fixture{svc: svc, store: store, docs: docs, broadcaster: broadcaster}
}

func identity(t *testing.T, login string) domain.Identity {
	t.Helper()
	id, err := domain.NewIdentity("id-"+login, login, "", "")
	require.NoError(t, err)
	return id
}

func (f *fixture) createRoom(t *testing.T, owner domain.Identity, visibility domain.Visibility) *domain.Room {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), owner, CreateRoomParams{
		Name:       "General",
		Visibility: visibility,
	})
	require.NoError(t, err)
	return room
}

func (f *fixture) members(t *testing.T, room *domain.Room) []string {
	t.Helper()
	list, _, err := document.Get(context.Background(), f.docs, room.Owner.Login, workspace.RoomMembersPath(room.LocalName), domain.MemberList{})
	require.NoError(t, err)
	logins := make([]string, 0, len(list))
	for _, m := range list {
		logins = append(logins, m.Login)
	}
	return logins
}

func (f *fixture) joinRequestDocs(owner string) []string {
	var paths []string
	for p := range f.store.Snapshot(owner) {
		if len(p) > len("join_requests/") && p[:len("join_requests/")] == "join_requests/" && p != "join_requests/.keep" {
			paths = append(paths, p)
		}
	}
	return paths
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	alice := identity(t, "alice")

	room := f.createRoom(t, alice, domain.VisibilityPublic)

	assert.Equal(t, "alice@"+room.LocalName, room.ID)
	snapshot := f.store.Snapshot("alice")
	assert.Contains(t, snapshot, workspace.RoomInfoPath(room.LocalName))
	assert.Contains(t, snapshot, workspace.RoomMembersPath(room.LocalName))
	assert.Contains(t, snapshot, workspace.RoomMessagesPath(room.LocalName))
	assert.Contains(t, snapshot, workspace.ConfigPath, "workspace is provisioned on first use")

	got, err := f.svc.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "General", got.Name)
	assert.Equal(t, []string{"alice"}, f.members(t, room))

	rooms, err := f.svc.ListRooms(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestCreateRoom_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRoom(context.Background(), identity(t, "alice"), CreateRoomParams{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.store.Snapshot("alice"))
}

func TestCreateRoom_CollisionIsAlreadyExists(t *testing.T) {
	f := newFixture(t)
	alice := identity(t, "alice")

	f.store.SetHook(func(_ context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpCreate && strings.HasPrefix(path, workspace.DirChats+"/") && strings.HasSuffix(path, "/members.json") {
			return domain.ErrVersionConflict
		}
		return nil
	})

	_, err := f.svc.CreateRoom(context.Background(), alice, CreateRoomParams{Name: "General"})
	assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
}

func TestGetRoom_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetRoom(context.Background(), "alice@nothing-here")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = f.svc.GetRoom(context.Background(), "not-a-room-id")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJoinRoom_Public(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)
	assert.Equal(t, JoinStatusJoined, res.Status)

	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room))
	assert.Empty(t, f.joinRequestDocs("alice"))

	res, err = f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)
	assert.Equal(t, JoinStatusJoined, res.Status)
	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room), "joining twice does not duplicate")
}

func TestJoinRoom_Private(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "let me in")
	require.NoError(t, err)
	assert.Equal(t, JoinStatusPending, res.Status)
	require.NotNil(t, res.Request)
	assert.Equal(t, domain.StatusPending, res.Request.Status)

	assert.Equal(t, []string{"alice"}, f.members(t, room))
	assert.Len(t, f.joinRequestDocs("alice"), 1)

	again, err := f.svc.JoinRoom(ctx, room.ID, bob, "please")
	require.NoError(t, err)
	assert.Equal(t, res.Request.ID, again.Request.ID, "pending request is reused")
	assert.Len(t, f.joinRequestDocs("alice"), 1)

	pending, err := f.svc.ListJoinRequests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob", pending[0].From.Login)

	msgs, err := f.svc.LoadMessages(ctx, alice, room.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageTypeJoinRequest, msgs[0].Type)
}

func TestResolveJoinRequest_AcceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	resolved, err := f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrRequestResolved)

	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room))

	var stored domain.JoinRequest
	_, err = f.docs.Read(ctx, "alice", workspace.JoinRequestPath(res.Request.ID), &stored)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, stored.Status)

	pending, err := f.svc.ListJoinRequests(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveJoinRequest_RepairsAfterStatusWriteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	requestPath := workspace.JoinRequestPath(res.Request.ID)
	f.store.SetHook(func(_ context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpPut && path == requestPath {
			return domain.ErrPermissionDenied
		}
		return nil
	})
	_, err = f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room), "membership lands first")

	f.store.SetHook(nil)
	resolved, err := f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, resolved.Status)
	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room))
}

func TestResolveJoinRequest_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	resolved, err := f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resolved.Status)
	assert.Equal(t, []string{"alice"}, f.members(t, room))

	_, err = f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrRequestResolved)
}

func TestResolveJoinRequest_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveJoinRequest(context.Background(), identity(t, "alice"), "missing", domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	_, err = f.svc.ResolveJoinRequest(context.Background(), identity(t, "alice"), "missing", domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListJoinRequests_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	_, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)
	_, err = f.store.Put(ctx, "alice", workspace.JoinRequestPath("garbage"), "bm90IGpzb24=", "")
	require.NoError(t, err)

	pending, err := f.svc.ListJoinRequests(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	msg, err := f.svc.SendMessage(ctx, alice, room.ID, "héllo 👋")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Author.Login)

	msgs, err := f.svc.LoadMessages(ctx, alice, room.ID, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "héllo 👋", msgs[0].Content)

	published := f.broadcaster.messages()
	require.Len(t, published, 1)
	assert.Equal(t, msg.ID, published[0].ID)
}

func TestSendMessage_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, identity(t, "alice"), domain.VisibilityPublic)

	_, err := f.svc.SendMessage(context.Background(), identity(t, "mallory"), room.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSendMessage_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)
	f.broadcaster.err = errors.New("hub closed")

	_, err := f.svc.SendMessage(ctx, alice, room.ID, "still stored")
	require.NoError(t, err)

	msgs, err := f.svc.LoadMessages(ctx, alice, room.ID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendMessage_RetriesOnceUnderContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPublic)
	_, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	rival, err := domain.NewMessage(bob, "rival", domain.MessageTypeMessage)
	require.NoError(t, err)

	messagesPath := workspace.RoomMessagesPath(room.LocalName)
	injected := false
	f.store.SetHook(func(ctx context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpPut && path == messagesPath && !injected {
			injected = true
			// Lands between the sender's read and write.
			return f.svc.AppendMessage(ctx, room.ID, *rival)
		}
		return nil
	})

	msg, err := f.svc.SendMessage(ctx, alice, room.ID, "mine")
	require.NoError(t, err)
	f.store.SetHook(nil)

	msgs, err := f.svc.LoadMessages(ctx, alice, room.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, rival.ID, msgs[0].ID)
	assert.Equal(t, msg.ID, msgs[1].ID)
}

func TestSendMessage_SecondConflictAsksToTryAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	messagesPath := workspace.RoomMessagesPath(room.LocalName)
	injections, inHook := 0, false
	f.store.SetHook(func(ctx context.Context, op blobstore.Op, _, path string) error {
		if op != blobstore.OpPut || path != messagesPath || inHook || injections == 2 {
			return nil
		}
		injections++
		inHook = true
		defer func() { inHook = false }()
		return f.svc.AppendMessage(ctx, room.ID, *domain.NewSystemMessage("noise", domain.MessageTypeSystem))
	})

	_, err := f.svc.SendMessage(ctx, alice, room.ID, "lost?")
	assert.ErrorIs(t, err, domain.ErrTryAgain)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Empty(t, f.broadcaster.messages())
}

func TestLoadMessages_PrivateRoomNeedsMembership(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, identity(t, "alice"), domain.VisibilityPrivate)

	_, err := f.svc.LoadMessages(context.Background(), identity(t, "mallory"), room.ID, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLoadMessages_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	_, err := f.svc.SendMessage(ctx, alice, room.ID, "first")
	require.NoError(t, err)
	_, err = f.svc.LoadMessages(ctx, alice, room.ID, time.Minute)
	require.NoError(t, err)

	// Reads behind the cache's back must not be observed.
	f.store.SetHook(func(_ context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpGet && path == workspace.RoomMessagesPath(room.LocalName) {
			return domain.ErrPermissionDenied
		}
		return nil
	})

	msgs, err := f.svc.LoadMessages(ctx, alice, room.ID, time.Minute)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

// readInterceptor runs afterRead once a document read has completed.
type readInterceptor struct {
	document.Store
	afterRead func(ctx context.Context, path string)
}

func (r *readInterceptor) Read(ctx context.Context, owner, path string, dst any) (blobstore.Version, error) {
	version, err := r.Store.Read(ctx, owner, path, dst)
	if r.afterRead != nil {
		r.afterRead(ctx, path)
	}
	return version, err
}

func TestLoadMessages_SlowReadDoesNotHideConfirmedSend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	docs := &readInterceptor{Store: f.docs}
	svc := NewService(docs, nil, cache.NewMemory(1), nil, Config{
		MessageLogCapacity: 100,
		RoomsMaxAge:        time.Minute,
		RequestsMaxAge:     time.Minute,
	}, logging.NewNop())

	messagesPath := workspace.RoomMessagesPath(room.LocalName)
	sent := false
	docs.afterRead = func(ctx context.Context, path string) {
		if path != messagesPath || sent {
			return
		}
		sent = true
		// The send is confirmed before the slow reader refills the cache.
		_, err := svc.SendMessage(ctx, alice, room.ID, "hello")
		require.NoError(t, err)
	}

	first, err := svc.LoadMessages(ctx, alice, room.ID, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := svc.LoadMessages(ctx, alice, room.ID, time.Hour)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "hello", second[0].Content)
}

func TestLoadMessages_SharedReadIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	alice := identity(t, "alice")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	docs := &readInterceptor{Store: f.docs}
	svc := NewService(docs, nil, cache.NewMemory(1), nil, Config{
		MessageLogCapacity: 100,
		RoomsMaxAge:        time.Minute,
	}, logging.NewNop())

	// Warm the room cache so only the message read goes through the flight.
	_, err := svc.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(context.Background())
	docs.afterRead = func(ctx context.Context, path string) {
		if path == workspace.RoomMessagesPath(room.LocalName) {
			cancel()
			assert.NoError(t, ctx.Err(), "shared read runs detached from the leader")
		}
	}

	_, err = svc.LoadMessages(leaderCtx, alice, room.ID, cache.Bypass)
	require.NoError(t, err)
}

func TestResolveJoinRequest_AcceptLosingToRejectRemovesMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	membersPath := workspace.RoomMembersPath(room.LocalName)
	rejected := false
	f.store.SetHook(func(ctx context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpPut && path == membersPath && !rejected {
			rejected = true
			_, err := f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusRejected)
			require.NoError(t, err)
		}
		return nil
	})

	_, err = f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	require.ErrorIs(t, err, domain.ErrRequestResolved)
	f.store.SetHook(nil)

	var stored domain.JoinRequest
	_, err = f.docs.Read(ctx, "alice", workspace.JoinRequestPath(res.Request.ID), &stored)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, []string{"alice"}, f.members(t, room))
}

func TestResolveJoinRequest_AcceptLosingToAcceptKeepsMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPrivate)

	res, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	requestPath := workspace.JoinRequestPath(res.Request.ID)
	raced := false
	f.store.SetHook(func(ctx context.Context, op blobstore.Op, _, path string) error {
		if op == blobstore.OpPut && path == requestPath && !raced {
			raced = true
			_, err := f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
			require.NoError(t, err)
		}
		return nil
	})

	_, err = f.svc.ResolveJoinRequest(ctx, alice, res.Request.ID, domain.StatusAccepted)
	require.ErrorIs(t, err, domain.ErrRequestResolved)
	f.store.SetHook(nil)

	assert.Equal(t, []string{"alice", "bob"}, f.members(t, room))
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob, carol := identity(t, "alice"), identity(t, "bob"), identity(t, "carol")
	room := f.createRoom(t, alice, domain.VisibilityPublic)
	for _, who := range []domain.Identity{bob, carol} {
		_, err := f.svc.JoinRoom(ctx, room.ID, who, "")
		require.NoError(t, err)
	}

	_, err := f.svc.RemoveMember(ctx, bob, room.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrForbidden, "members cannot remove others")

	_, err = f.svc.RemoveMember(ctx, alice, room.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden, "owner stays")

	members, err := f.svc.RemoveMember(ctx, bob, room.ID, "bob")
	require.NoError(t, err)
	assert.False(t, members.Contains("bob"))

	_, err = f.svc.RemoveMember(ctx, alice, room.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, f.members(t, room))

	_, err = f.svc.RemoveMember(ctx, alice, room.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestUpdateRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPublic)
	_, err := f.svc.JoinRoom(ctx, room.ID, bob, "")
	require.NoError(t, err)

	name := "Renamed"
	private := domain.VisibilityPrivate
	_, err = f.svc.UpdateRoom(ctx, bob, room.ID, domain.RoomPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := f.svc.UpdateRoom(ctx, alice, room.ID, domain.RoomPatch{Name: &name, Visibility: &private})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsPublic())

	got, err := f.svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name, "cache entry was invalidated")
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")
	room := f.createRoom(t, alice, domain.VisibilityPublic)

	_, err := f.svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, bob, room.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeleteRoom(ctx, alice, room.ID))
	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, alice, room.ID), domain.ErrRoomNotFound)

	_, err = f.svc.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	rooms, err := f.svc.ListRooms(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	assert.Contains(t, f.store.Snapshot("alice"), workspace.RoomMessagesPath(room.LocalName), "history is kept")
}

func TestLoadNotices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := identity(t, "bob")
	require.NoError(t, f.store.CreateContainer(ctx, "bob"))

	notices, err := f.svc.LoadNotices(ctx, bob, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, notices)

	notice := domain.NewSystemMessage("alice sent you a friend request", domain.MessageTypeSystem)
	require.NoError(t, f.svc.AppendMessage(ctx, "bob@system", *notice))
	require.NoError(t, f.svc.AppendMessage(ctx, "bob@system", *notice), "re-appending the same notice is a no-op")

	notices, err = f.svc.LoadNotices(ctx, bob, time.Minute)
	require.NoError(t, err)
	require.Len(t, notices, 1, "append dropped the cached log")
	assert.Equal(t, notice.ID, notices[0].ID)
}
