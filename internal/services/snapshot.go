package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

// SnapshotStore persists chain snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// SnapshotWriter saves the chain shortly after every committed mutation and
// on a fixed interval. Saves requested while one is running are coalesced.
type SnapshotWriter struct {
	store    SnapshotStore
	interval time.Duration
	timeout  time.Duration
	dirty    chan struct{}
	log      *logrus.Logger
}

func NewSnapshotWriter(store SnapshotStore, interval time.Duration, log *logrus.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		store:    store,
		interval: interval,
		timeout:  5 * time.Second,
		dirty:    make(chan struct{}, 1),
		log:      log,
	}
}

// Publish marks the state dirty. It runs under the chain lock and never
// blocks.
func (w *SnapshotWriter) Publish(models.Event) {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// Run saves until ctx is done. The caller saves the final state with Save
// once no more mutations can arrive.
func (w *SnapshotWriter) Run(ctx context.Context, chain *Chain) {
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.dirty:
		case <-tick:
		}

		saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
		if err := w.Save(saveCtx, chain); err != nil {
			w.log.WithError(err).Error("failed to save snapshot")
		}
		cancel()
	}
}

func (w *SnapshotWriter) Save(ctx context.Context, chain *Chain) error {
	snapshot := chain.Snapshot()
	if err := w.store.SaveSnapshot(ctx, snapshot); err != nil {
		return err
	}
	w.log.WithField("sequence", snapshot.Sequence).Debug("snapshot saved")
	return nil
}
