package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPConfig configures the REST driver.
type HTTPConfig struct {
	BaseURL string
	// Container is the per-owner repository that holds a workspace.
	Container string
	// Token is used when the request context carries no caller credential.
	Token     string
	Timeout   time.Duration
	Committer string
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// HTTPStore talks to a contents-style REST API:
//
//	GET    {base}/repos/{owner}/{container}/contents/{path}
//	PUT    {base}/repos/{owner}/{container}/contents/{path}   {message, content, sha?}
//	DELETE {base}/repos/{owner}/{container}/contents/{path}   {message, sha}
//	GET    {base}/repos/{owner}/{container}
//	GET    {base}/user
//	POST   {base}/user/repos                                  {name, private, auto_init}
type HTTPStore struct {
	baseURL   *url.URL
	container string
	token     string
	committer string
	client    *http.Client
}

func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid blob store base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("blob store base url must be absolute: %q", cfg.BaseURL)
	}
	if cfg.Container == "" {
		return nil, errors.New("blob store container name is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}

	committer := cfg.Committer
	if committer == "" {
		committer = "visper"
	}

	return &HTTPStore{
		baseURL:   base,
		container: cfg.Container,
		token:     cfg.Token,
		committer: committer,
		client:    client,
	}, nil
}

type contentItem struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type userResponse struct {
	Login string `json:"login"`
}

type createRepoRequest struct {
	Name     string `json:"name"`
	Private  bool   `json:"private"`
	AutoInit bool   `json:"auto_init"`
}

func (s *HTTPStore) Get(ctx context.Context, owner, path string) (Blob, error) {
	raw, err := s.do(ctx, http.MethodGet, s.contentsPath(owner, path), nil)
	if err != nil {
		return Blob{}, err
	}

	var item contentItem
	if err := json.Unmarshal(raw, &item); err != nil {
		// A JSON array means path is a directory.
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			return Blob{}, fmt.Errorf("%s is a directory: %w", path, domain.ErrNotFound)
		}
		return Blob{}, fmt.Errorf("unexpected contents response: %w", domain.ErrTransient)
	}

	return Blob{Content: item.Content, Version: Version(item.SHA)}, nil
}

func (s *HTTPStore) Put(ctx context.Context, owner, path, content string, version Version) (Version, error) {
	if version == "" {
		current, err := s.Get(ctx, owner, path)
		switch {
		case err == nil:
			version = current.Version
		case !errors.Is(err, domain.ErrNotFound):
			return "", err
		}
	}
	return s.write(ctx, owner, path, content, version)
}

func (s *HTTPStore) Create(ctx context.Context, owner, path, content string) (Version, error) {
	return s.write(ctx, owner, path, content, "")
}

func (s *HTTPStore) write(ctx context.Context, owner, path, content string, version Version) (Version, error) {
	body := writeRequest{
		Message: fmt.Sprintf("%s: update %s", s.committer, path),
		Content: content,
		SHA:     string(version),
	}

	raw, err := s.do(ctx, http.MethodPut, s.contentsPath(owner, path), body)
	if err != nil {
		return "", err
	}

	var resp writeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected write response: %w", domain.ErrTransient)
	}
	return Version(resp.Content.SHA), nil
}

func (s *HTTPStore) List(ctx context.Context, owner, dir string) ([]Entry, error) {
	raw, err := s.do(ctx, http.MethodGet, s.contentsPath(owner, dir), nil)
	if err != nil {
		return nil, err
	}

	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, domain.ErrNotFound)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		typ := EntryFile
		if it.Type == "dir" {
			typ = EntryDir
		}
		entries = append(entries, Entry{Name: it.Name, Type: typ})
	}
	return entries, nil
}

func (s *HTTPStore) Delete(ctx context.Context, owner, path string) error {
	current, err := s.Get(ctx, owner, path)
	if err != nil {
		return err
	}

	body := writeRequest{
		Message: fmt.Sprintf("%s: delete %s", s.committer, path),
		SHA:     string(current.Version),
	}
	_, err = s.do(ctx, http.MethodDelete, s.contentsPath(owner, path), body)
	return err
}

func (s *HTTPStore) ContainerExists(ctx context.Context, owner string) (bool, error) {
	_, err := s.do(ctx, http.MethodGet, s.repoPath(owner), nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CreateContainer creates the repository in the calling account. The API
// offers no way to create one for another account, so an owner other than
// the credential holder fails with domain.ErrPermissionDenied. An existing
// repository is not an error.
func (s *HTTPStore) CreateContainer(ctx context.Context, owner string) error {
	holder, err := s.credentialHolder(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(holder, owner) {
		return fmt.Errorf("cannot create the workspace of %s as %s: %w", owner, holder, domain.ErrPermissionDenied)
	}

	body := createRepoRequest{Name: s.container, Private: true, AutoInit: true}
	_, err = s.do(ctx, http.MethodPost, "/user/repos", body)
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil
	}
	return err
}

func (s *HTTPStore) credentialHolder(ctx context.Context) (string, error) {
	raw, err := s.do(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return "", err
	}
	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil || user.Login == "" {
		return "", fmt.Errorf("unexpected user response: %w", domain.ErrTransient)
	}
	return user.Login, nil
}

func (s *HTTPStore) repoPath(owner string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(s.container)
}

func (s *HTTPStore) contentsPath(owner, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.repoPath(owner) + "/contents/" + strings.Join(segments, "/")
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := CredentialFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %v: %w", method, path, err, domain.ErrTransient)
	}

	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("%s %s: %s: %w", method, path, resp.Status, err)
	}
	return raw, nil
}

// classify maps an HTTP status onto the store error taxonomy.
func classify(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return domain.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrPermissionDenied
	case code == http.StatusConflict || code == http.StatusUnprocessableEntity || code == http.StatusPreconditionFailed:
		return domain.ErrVersionConflict
	case code == http.StatusRequestTimeout || code >= 500:
		return domain.ErrTransient
	default:
		return fmt.Errorf("unexpected status %d: %w", code, domain.ErrOperationFailed)
	}
}
