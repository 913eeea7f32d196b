package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/stashd/internal/domain"
)

type Resolver struct {
	store  domain.RemoteStore
	logger Logger
	strict bool
}

// NewResolver creates the container resolver. With strict set, finding more
// than one container with the same name is an error instead of a warning.
func NewResolver(store domain.RemoteStore, logger Logger, strict bool) *Resolver {
	return &Resolver{store: store, logger: logger, strict: strict}
}

// Resolve returns the id of the container called name, creating it when the
// store has none. Duplicates are never merged or removed.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	folders, err := r.store.FindFolders(ctx, name)
	if err != nil {
		return "", fmt.Errorf("find container %s: %w", name, err)
	}

	switch {
	case len(folders) == 1:
		return folders[0].ID, nil
	case len(folders) > 1:
		if r.strict {
			return "", fmt.Errorf("%w: %d containers named %s", domain.ErrDuplicateFolder, len(folders), name)
		}
		r.logger.Warnf("Found %d containers named %s on %s, using %s",
			len(folders), name, r.store.Name(), folders[0].ID)
		return folders[0].ID, nil
	}

	folder, err := r.store.CreateFolder(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", name, err)
	}
	r.logger.Infof("Created container %s on %s: %s", name, r.store.Name(), folder.ID)

	return folder.ID, nil
}
