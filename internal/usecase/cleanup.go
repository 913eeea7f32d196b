package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/stashd/internal/domain"
)

// Pruner deletes archives that have aged past the retention window.
type Pruner struct {
	store  domain.RemoteStore
	logger Logger
	prefix string
	now    func() time.Time
}

func NewPruner(store domain.RemoteStore, logger Logger, prefix string) *Pruner {
	return &Pruner{store: store, logger: logger, prefix: prefix, now: time.Now}
}

// Cutoff is recomputed on every pass and never stored.
func (p *Pruner) Cutoff(retentionDays int) time.Time {
	return p.now().UTC().AddDate(0, 0, -retentionDays)
}

// Prune removes every archive in the container created strictly before the
// cutoff. Objects named in exclude are neither deleted nor counted; the run
// passes the archive it just uploaded. Deletion is best effort: a failed item is recorded and the rest are
// still attempted. The returned error is non-nil only when the listing itself
// fails or the retention window is invalid.
func (p *Pruner) Prune(ctx context.Context, containerID string, retentionDays int, exclude ...string) (domain.PruneResult, error) {
	var result domain.PruneResult

	if retentionDays < 0 {
		return result, fmt.Errorf("invalid retention window: %d days", retentionDays)
	}

	cutoff := p.Cutoff(retentionDays)
	p.logger.Infof("Pruning archives older than %s (retention: %d days)", cutoff.Format(time.RFC3339), retentionDays)

	objects, err := p.store.ListObjects(ctx, domain.ObjectQuery{
		Parent:     containerID,
		NamePrefix: p.prefix + "-",
	})
	if err != nil {
		return result, fmt.Errorf("list archives: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	expired := make([]domain.RemoteObject, 0)
	for _, object := range objects {
		if skip[object.ID] || !IsArchiveName(p.prefix, object.Name) {
			continue
		}
		if object.CreatedTime.IsZero() {
			p.logger.Warnf("Keeping %s: store reported no creation time", object.Name)
			result.Retained++
			continue
		}
		if object.CreatedTime.Before(cutoff) {
			expired = append(expired, object)
		} else {
			result.Retained++
		}
	}

	for _, object := range expired {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, domain.PruneFailure{Object: object, Err: err})
			continue
		}

		p.logger.Infof("Deleting old backup %s (created %s)", object.Name, object.CreatedTime.Format(time.RFC3339))
		if err := p.store.DeleteObject(ctx, object.ID); err != nil {
			err = fmt.Errorf("%w %s: %w", domain.ErrPruneItem, object.Name, err)
			p.logger.Errorf("%v", err)
			result.Failed = append(result.Failed, domain.PruneFailure{Object: object, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, object)
	}

	p.logger.Infof("Pruning completed: %d retained, %d pruned, %d failed",
		result.Retained, len(result.Deleted), len(result.Failed))

	return result, nil
}
