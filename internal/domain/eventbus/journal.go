package eventbus

import (
	"context"
	"time"

	"roadscan-server-go/internal/domain/eventbus/repository"
	"roadscan-server-go/internal/utils"
)

const (
	defaultRetention     = 7 * 24 * time.Hour
	defaultPruneInterval = time.Hour
	defaultRecentLimit   = 20
	maxRecentLimit       = 200
)

// Journal is the read and retention side of the persisted event history.
type Journal struct {
	repo      repository.EventRepository
	retention time.Duration
	logger    *utils.Logger
	now       func() time.Time
}

// NewJournal wraps repo. A non-positive retention selects seven days.
func NewJournal(repo repository.EventRepository, retention time.Duration, logger *utils.Logger) *Journal {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Journal{repo: repo, retention: retention, logger: logger, now: time.Now}
}

// Session lists a session's events, oldest first.
func (j *Journal) Session(ctx context.Context, sessionID string) ([]repository.Event, error) {
	return j.repo.FindBySessionID(ctx, sessionID)
}

// Recent lists the newest events of one type. limit is clamped to [1, 200]
// and defaults to 20.
func (j *Journal) Recent(ctx context.Context, eventType string, limit int) ([]repository.Event, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}
	return j.repo.FindByEventType(ctx, eventType, limit)
}

// Stats counts journalled events per topic.
func (j *Journal) Stats(ctx context.Context) (map[string]int64, error) {
	return j.repo.GetEventStats(ctx)
}

// Prune deletes entries older than the retention window and returns the cutoff.
func (j *Journal) Prune(ctx context.Context) (time.Time, error) {
	cutoff := j.now().Add(-j.retention)
	if err := j.repo.DeleteOldEvents(ctx, cutoff); err != nil {
		return cutoff, err
	}
	return cutoff, nil
}

// Run prunes once, then every interval until ctx is done. Prune failures are
// logged and retried on the next tick.
func (j *Journal) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cutoff, err := j.Prune(ctx); err != nil {
			j.logger.WarnTag("Events", "journal prune failed: %v", err)
		} else {
			j.logger.DebugTag("Events", "journal pruned before %s", cutoff.Format(time.RFC3339))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
