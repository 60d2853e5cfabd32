package social

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/repochat/internal/application/chat"
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

type fixture struct {
	svc   Service
	chat  chat.Service
	store *blobstore.MemoryStore
	docs  *document.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.FromZap(zaptest.NewLogger(t))
	store := blobstore.NewMemoryStore()
	policy := retry.NewPolicy(3, 0, logger, nil)
	docs := document.NewRepository(store, policy, logger)
	provisioner := workspace.NewProvisioner(store, docs, policy, logger)
	c := cache.NewMemory(1)

	chatSvc := chat.NewService(docs, provisioner, c, nil, chat.Config{MessageLogCapacity: 50}, logger)
	svc := NewService(docs, provisioner, c, chatSvc, Config{
		SystemNotices:  true,
		RequestsMaxAge: time.Minute,
	}, logger)

	return &fixture{svc: svc, chat: chatSvc, store: store, docs: docs}
}

func identity(t *testing.T, login string) domain.Identity {
	t.Helper()
	id, err := domain.NewIdentity("id-"+login, login, strings.ToUpper(login[:1])+login[1:], "")
	require.NoError(t, err)
	return id
}

func (f *fixture) requestDocs(owner string) int {
	n := 0
	for p := range f.store.Snapshot(owner) {
		if strings.HasPrefix(p, workspace.DirFriendRequests+"/") && !strings.HasSuffix(p, "/.keep") {
			n++
		}
	}
	return n
}

func (f *fixture) contacts(t *testing.T, owner string) []string {
	t.Helper()
	cfg, _, err := document.Get(context.Background(), f.docs, owner, workspace.ConfigPath, domain.UserConfig{})
	require.NoError(t, err)
	logins := make([]string, 0, len(cfg.Contacts))
	for _, c := range cfg.Contacts {
		logins = append(logins, c.Login)
	}
	return logins
}

func TestSendFriendRequest_DuplicateSuppression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")

	first, err := f.svc.SendFriendRequest(ctx, alice, "bob", "hi")
	require.NoError(t, err)
	second, err := f.svc.SendFriendRequest(ctx, alice, "bob", "hi again")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.requestDocs("bob"))

	pending, err := f.svc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].From.Login)
	assert.Equal(t, "hi", pending[0].Note)
}

func TestSendFriendRequest_ProvisionsRecipientAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SendFriendRequest(ctx, identity(t, "alice"), "Bob", "")
	require.NoError(t, err)

	assert.Contains(t, f.store.Snapshot("bob"), workspace.ConfigPath)

	notices, err := f.chat.LoadNotices(ctx, identity(t, "bob"), 0)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Alice sent you a friend request", notices[0].Content)
	assert.Equal(t, domain.SystemLogin, notices[0].Author.Login)
}

func TestSendFriendRequest_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := identity(t, "alice")

	_, err := f.svc.SendFriendRequest(ctx, alice, "alice", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SendFriendRequest(ctx, alice, "not a login", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SendFriendRequest(ctx, alice, "bob", strings.Repeat("x", 281))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolveFriendRequest_Accept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")

	req, err := f.svc.SendFriendRequest(ctx, alice, "bob", "")
	require.NoError(t, err)

	resolved, err := f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, resolved.Status)

	assert.Equal(t, []string{"alice"}, f.contacts(t, "bob"))
	assert.Equal(t, []string{"bob"}, f.contacts(t, "alice"))

	_, err = f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrRequestResolved)
	assert.Equal(t, []string{"alice"}, f.contacts(t, "bob"))

	_, err = f.svc.SendFriendRequest(ctx, alice, "bob", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyFriends)

	pending, err := f.svc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 1, f.requestDocs("bob"), "resolved requests stay in place")

	notices, err := f.chat.LoadNotices(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Bob accepted your friend request", notices[0].Content)
}

func TestResolveFriendRequest_RepairsPartialAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")

	req, err := f.svc.SendFriendRequest(ctx, alice, "bob", "")
	require.NoError(t, err)

	f.store.SetHook(func(_ context.Context, op blobstore.Op, owner, path string) error {
		if op == blobstore.OpPut && owner == "alice" && path == workspace.ConfigPath {
			return domain.ErrPermissionDenied
		}
		return nil
	})
	_, err = f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	assert.Equal(t, []string{"alice"}, f.contacts(t, "bob"))
	pending, err := f.svc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "status is only recorded once both contacts exist")

	f.store.SetHook(nil)
	_, err = f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, f.contacts(t, "bob"))
	assert.Equal(t, []string{"bob"}, f.contacts(t, "alice"))
}

func TestResolveFriendRequest_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")

	req, err := f.svc.SendFriendRequest(ctx, alice, "bob", "")
	require.NoError(t, err)

	resolved, err := f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resolved.Status)
	assert.Empty(t, f.contacts(t, "bob"))

	again, err := f.svc.SendFriendRequest(ctx, alice, "bob", "second try")
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, again.ID, "a rejected request does not block a new one")
}

func TestResolveFriendRequest_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveFriendRequest(context.Background(), identity(t, "bob"), "nope", domain.StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestListPendingRequests_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SendFriendRequest(ctx, identity(t, "alice"), "bob", "")
	require.NoError(t, err)
	_, err = f.store.Put(ctx, "bob", workspace.FriendRequestPath("broken"), "e30", "")
	require.NoError(t, err)

	pending, err := f.svc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")

	req, err := f.svc.SendFriendRequest(ctx, alice, "bob", "")
	require.NoError(t, err)

	contacts, err := f.svc.ListContacts(ctx, "bob", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	_, err = f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	require.NoError(t, err)

	contacts, err = f.svc.ListContacts(ctx, "bob", time.Minute)
	require.NoError(t, err)
	require.Len(t, contacts, 1, "accepting invalidated the cached list")
	assert.Equal(t, "Alice", contacts[0].DisplayName)

	require.NoError(t, f.svc.RemoveContact(ctx, bob, "alice"))
	assert.Empty(t, f.contacts(t, "bob"))
	assert.Empty(t, f.contacts(t, "alice"))

	assert.ErrorIs(t, f.svc.RemoveContact(ctx, bob, "alice"), domain.ErrNotFound)
}

func TestResolveFriendRequest_AcceptLosingToRejectRemovesContacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := identity(t, "alice"), identity(t, "bob")

	req, err := f.svc.SendFriendRequest(ctx, alice, "bob", "")
	require.NoError(t, err)

	rejected := false
	f.store.SetHook(func(ctx context.Context, op blobstore.Op, owner, path string) error {
		if op == blobstore.OpPut && owner == "alice" && path == workspace.ConfigPath && !rejected {
			rejected = true
			// Lands after bob's side was added, before the status is recorded.
			_, err := f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusRejected)
			require.NoError(t, err)
		}
		return nil
	})

	_, err = f.svc.ResolveFriendRequest(ctx, bob, req.ID, domain.StatusAccepted)
	require.ErrorIs(t, err, domain.ErrRequestResolved)
	f.store.SetHook(nil)

	var stored domain.FriendRequest
	_, err = f.docs.Read(ctx, "bob", workspace.FriendRequestPath(req.ID), &stored)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Empty(t, f.contacts(t, "bob"))
	assert.Empty(t, f.contacts(t, "alice"))
}
