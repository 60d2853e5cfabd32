// Package workspace owns the per-user container layout in the blob store.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/document"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/retry"
)

type Provisioner struct {
	client blobstore.Client
	docs   document.Store
	policy *retry.Policy
	logger logging.Logger
}

func NewProvisioner(client blobstore.Client, docs document.Store, policy *retry.Policy, logger logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provisioner{
		client: client,
		docs:   docs,
		policy: policy,
		logger: logger,
	}
}

// EnsureWorkspace makes sure owner's container and layout exist. A complete
// workspace costs one existence check. An incomplete one, left by an earlier
// failure, is repaired by re-issuing every step; all of them are idempotent.
func (p *Provisioner) EnsureWorkspace(ctx context.Context, owner string) error {
	ready, err := p.isProvisioned(ctx, owner)
	if err != nil {
		return fmt.Errorf("check workspace %s: %w", owner, err)
	}
	if ready {
		return nil
	}

	exists, err := retry.Do(ctx, p.policy, func(ctx context.Context) (bool, error) {
		return p.client.ContainerExists(ctx, owner)
	})
	if err != nil {
		return fmt.Errorf("check container %s: %w", owner, err)
	}
	if !exists {
		err := retry.Run(ctx, p.policy, func(ctx context.Context) error {
			return p.client.CreateContainer(ctx, owner)
		})
		if err != nil {
			return fmt.Errorf("create container %s: %w", owner, err)
		}
	}

	for _, dir := range Dirs {
		keep := path.Join(dir, placeholder)
		_, err := retry.Do(ctx, p.policy, func(ctx context.Context) (blobstore.Version, error) {
			return p.client.Put(ctx, owner, keep, "", "")
		})
		if err != nil {
			return fmt.Errorf("create %s/%s: %w", owner, dir, err)
		}
	}

	_, err = p.docs.Write(ctx, owner, ConfigPath, domain.NewUserConfig(), "")
	if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		return fmt.Errorf("write initial config for %s: %w", owner, err)
	}

	p.logger.Info(logging.BlobStore, logging.Provisioning, "workspace provisioned", map[logging.ExtraKey]any{
		logging.Owner: owner,
	})
	return nil
}

func (p *Provisioner) isProvisioned(ctx context.Context, owner string) (bool, error) {
	_, err := retry.Do(ctx, p.policy, func(ctx context.Context) (blobstore.Blob, error) {
		return p.client.Get(ctx, owner, ConfigPath)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
