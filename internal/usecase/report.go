package usecase

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/stashd/internal/domain"
)

// Summary renders the human readable outcome of a run: files included, upload
// size and the pruning tally.
func Summary(r *domain.RunReport) string {
	parts := make([]string, 0, 5)

	if r.Success() {
		parts = append(parts, "backup succeeded")
	} else {
		parts = append(parts, "backup failed")
	}

	if r.Metadata != nil {
		parts = append(parts, fmt.Sprintf("%d real, %d placeholder entries",
			r.Metadata.RealEntries(), r.Metadata.PlaceholderEntries()))
	}

	if r.Object != nil {
		parts = append(parts, fmt.Sprintf("uploaded %s (%s)", r.Object.Name, humanize.Bytes(uint64(r.Object.Size))))
	}

	if r.Prune != nil {
		p := fmt.Sprintf("%d retained, %d pruned", r.Prune.Retained, len(r.Prune.Deleted))
		if n := len(r.Prune.Failed); n > 0 {
			p += fmt.Sprintf(", %d failed to prune", n)
		}
		parts = append(parts, p)
	}
	if r.PruneErr != nil {
		parts = append(parts, fmt.Sprintf("pruning skipped: %v", r.PruneErr))
	}

	if r.Err != nil {
		parts = append(parts, fmt.Sprintf("error: %v", r.Err))
	}

	return strings.Join(parts, "; ")
}
