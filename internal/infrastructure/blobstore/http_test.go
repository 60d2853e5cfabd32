package blobstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContentsAPI serves the subset of the contents API the driver uses,
// backed by a MemoryStore.
type fakeContentsAPI struct {
	mu        sync.Mutex
	store     *MemoryStore
	container string
	authSeen  []string
}

func newFakeContentsAPI(t *testing.T) (*fakeContentsAPI, *httptest.Server) {
	t.Helper()
	api := &fakeContentsAPI{store: NewMemoryStore(), container: "visper-data"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}", api.getRepo)
	mux.HandleFunc("GET /user", api.getUser)
	mux.HandleFunc("POST /user/repos", api.createRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", api.getContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", api.putContents)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", api.deleteContents)

	srv := httptest.NewServer(api.recordAuth(mux))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeContentsAPI) recordAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.authSeen = append(a.authSeen, r.Header.Get("Authorization"))
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *fakeContentsAPI) getRepo(w http.ResponseWriter, r *http.Request) {
	ok, _ := a.store.ContainerExists(r.Context(), r.PathValue("owner"))
	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	w.Write([]byte(`{"name":"visper-data"}`))
}

func (a *fakeContentsAPI) getUser(w http.ResponseWriter, r *http.Request) {
	// The token doubles as the account name in this fake.
	json.NewEncoder(w).Encode(map[string]string{"login": r.Header.Get("Authorization")[len("Bearer "):]})
}

func (a *fakeContentsAPI) createRepo(w http.ResponseWriter, r *http.Request) {
	// The token doubles as the account name in this fake.
	owner := r.Header.Get("Authorization")[len("Bearer "):]
	if ok, _ := a.store.ContainerExists(r.Context(), owner); ok {
		http.Error(w, `{"message":"name already exists"}`, http.StatusUnprocessableEntity)
		return
	}
	a.store.CreateContainer(r.Context(), owner)
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{}`))
}

func (a *fakeContentsAPI) getContents(w http.ResponseWriter, r *http.Request) {
	owner, path := r.PathValue("owner"), r.PathValue("path")

	blob, err := a.store.Get(r.Context(), owner, path)
	if err == nil {
		json.NewEncoder(w).Encode(contentItem{Type: "file", Path: path, SHA: string(blob.Version), Content: blob.Content})
		return
	}

	entries, err := a.store.List(r.Context(), owner, path)
	if err != nil {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	items := make([]contentItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, contentItem{Type: string(e.Type), Name: e.Name})
	}
	json.NewEncoder(w).Encode(items)
}

func (a *fakeContentsAPI) putContents(w http.ResponseWriter, r *http.Request) {
	owner, path := r.PathValue("owner"), r.PathValue("path")

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		v   Version
		err error
	)
	if req.SHA == "" {
		v, err = a.store.Create(r.Context(), owner, path, req.Content)
	} else {
		v, err = a.store.Put(r.Context(), owner, path, req.Content, Version(req.SHA))
	}
	if err != nil {
		http.Error(w, `{"message":"sha mismatch"}`, http.StatusConflict)
		return
	}

	var resp writeResponse
	resp.Content.SHA = string(v)
	json.NewEncoder(w).Encode(resp)
}

func (a *fakeContentsAPI) deleteContents(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(r.Context(), r.PathValue("owner"), r.PathValue("path")); err != nil {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	w.Write([]byte(`{}`))
}

func newTestHTTPStore(t *testing.T, baseURL string) *HTTPStore {
	t.Helper()
	s, err := NewHTTPStore(HTTPConfig{BaseURL: baseURL, Container: "visper-data", Token: "service"})
	require.NoError(t, err)
	return s
}

func TestHTTPStore_RoundTrip(t *testing.T) {
	_, srv := newFakeContentsAPI(t)
	s := newTestHTTPStore(t, srv.URL)
	ctx := WithCredential(context.Background(), "alice")

	exists, err := s.ContainerExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateContainer(ctx, "alice"))
	require.NoError(t, s.CreateContainer(ctx, "alice"), "existing container is not an error")

	exists, err = s.ContainerExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	v1, err := s.Create(ctx, "alice", "chats/general/info.json", "e30=")
	require.NoError(t, err)

	blob, err := s.Get(ctx, "alice", "chats/general/info.json")
	require.NoError(t, err)
	assert.Equal(t, "e30=", blob.Content)
	assert.Equal(t, v1, blob.Version)

	v2, err := s.Put(ctx, "alice", "chats/general/info.json", "W10=", v1)
	require.NoError(t, err)

	_, err = s.Put(ctx, "alice", "chats/general/info.json", "e30=", v1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	v3, err := s.Put(ctx, "alice", "chats/general/info.json", "bnVsbA==", "")
	require.NoError(t, err, "unconditional put overwrites")
	assert.NotEqual(t, v2, v3)

	entries, err := s.List(ctx, "alice", "chats")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "general", Type: EntryDir}}, entries)

	_, err = s.Get(ctx, "alice", "chats")
	assert.ErrorIs(t, err, domain.ErrNotFound, "directories are not blobs")

	require.NoError(t, s.Delete(ctx, "alice", "chats/general/info.json"))
	_, err = s.Get(ctx, "alice", "chats/general/info.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHTTPStore_CreateContainerOnlyForCredentialHolder(t *testing.T) {
	api, srv := newFakeContentsAPI(t)
	s := newTestHTTPStore(t, srv.URL)
	ctx := WithCredential(context.Background(), "alice")

	err := s.CreateContainer(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	exists, err := api.store.ContainerExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is created in the caller's account")
	exists, err = api.store.ContainerExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHTTPStore_ForwardsCredential(t *testing.T) {
	api, srv := newFakeContentsAPI(t)
	s := newTestHTTPStore(t, srv.URL)

	_, _ = s.ContainerExists(context.Background(), "alice")
	_, _ = s.ContainerExists(WithCredential(context.Background(), "alice-token"), "alice")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"Bearer service", "Bearer alice-token"}, api.authSeen)
}

func TestHTTPStore_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		want    error
	}{
		{name: "not found", status: http.StatusNotFound, want: domain.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, want: domain.ErrPermissionDenied},
		{name: "forbidden", status: http.StatusForbidden, want: domain.ErrPermissionDenied},
		{name: "secondary rate limit", status: http.StatusForbidden, headers: map[string]string{"X-RateLimit-Remaining": "0"}, want: domain.ErrRateLimited},
		{name: "too many requests", status: http.StatusTooManyRequests, want: domain.ErrRateLimited},
		{name: "conflict", status: http.StatusConflict, want: domain.ErrVersionConflict},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, want: domain.ErrVersionConflict},
		{name: "server error", status: http.StatusBadGateway, want: domain.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := newTestHTTPStore(t, srv.URL)
			_, err := s.Get(context.Background(), "alice", "config/user.json")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPStore_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := newTestHTTPStore(t, url)
	_, err := s.Get(context.Background(), "alice", "config/user.json")
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestNewHTTPStore_Validation(t *testing.T) {
	_, err := NewHTTPStore(HTTPConfig{BaseURL: "not a url", Container: "x"})
	assert.Error(t, err)

	_, err = NewHTTPStore(HTTPConfig{BaseURL: "https://api.example.com"})
	assert.Error(t, err)
}
