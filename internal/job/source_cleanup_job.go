package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

// SourceCleanupJob deletes sources that no turn cites anymore. Sources
// are shared between turns and only implicitly reference counted, so
// orphans accumulate when chats are deleted.
type SourceCleanupJob struct {
	sources *repo.SourceRepo
	minAge  time.Duration
}

func NewSourceCleanupJob(sources *repo.SourceRepo, minAge time.Duration) *SourceCleanupJob {
	return &SourceCleanupJob{sources: sources, minAge: minAge}
}

func (j *SourceCleanupJob) Name() string {
	return "source_cleanup"
}

func (j *SourceCleanupJob) Run(ctx context.Context) error {
	cutoff := timeutil.NowUnix() - int64(j.minAge.Seconds())
	deleted, err := j.sources.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("orphan sources removed", zap.Int64("count", deleted))
	}
	return nil
}
