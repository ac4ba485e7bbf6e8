package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	e "nuclight.org/tg-scraper/pkg/entities"
	"nuclight.org/tg-scraper/pkg/logger"
	"nuclight.org/tg-scraper/pkg/metrics"
)

type tailState int

const (
	tailInactive tailState = iota
	tailActive
	tailStopped
)

// Tailer consumes live updates for one chat after catch-up has finished.
// Messages at or below the last known id are discarded: that is the
// overlap guard between catch-up and the subscription, duplicates are
// expected there and must not be re-processed.
type Tailer struct {
	Log     logger.Logger
	Source  Source
	State   State
	Sink    Sink
	Metrics *metrics.Metrics

	mu     sync.Mutex
	state  tailState
	lastID int64
	saved  int64
}

// LastID reports the highest message id the tailer has processed. The
// shutdown path reads it through this accessor instead of sharing
// mutable state with the update handler.
func (t *Tailer) LastID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastID
}

// Run blocks until ctx is cancelled or the update stream closes, then
// flushes the cursor if anything newer than the last successful save
// came through. lastID is the catch-up maximum, savedID the value known
// to be durable.
func (t *Tailer) Run(ctx context.Context, peerID, lastID, savedID int64) error {
	t.mu.Lock()
	if t.state != tailInactive {
		t.mu.Unlock()
		return fmt.Errorf("tailer already started")
	}
	t.state = tailActive
	t.lastID = lastID
	t.saved = savedID
	t.mu.Unlock()

	updates, err := t.Source.Updates(ctx, peerID)
	if err != nil {
		return fmt.Errorf("subscribing to updates: %w", err)
	}

	t.Log.Info("listening for new messages")

	defer t.stop(peerID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-updates:
			if !ok {
				return nil
			}

			t.handle(ctx, peerID, rec)
		}
	}
}

func (t *Tailer) handle(ctx context.Context, peerID int64, rec e.Record) {
	if rec.ID <= t.LastID() {
		t.Metrics.RecordDiscarded()
		return
	}

	if err := t.Sink.Write(ctx, peerID, rec); err != nil {
		t.Log.Error("writing record", "error", err, "message_id", rec.ID)
		t.Metrics.RecordSinkFailure()
	} else {
		t.Metrics.RecordProcessed(rec.ID)
	}

	t.mu.Lock()
	t.lastID = rec.ID
	t.mu.Unlock()

	// Per-message checkpoint: tail volume is low and losing an
	// unacknowledged message costs more than one extra store write.
	if err := t.State.SaveLastID(ctx, peerID, rec.ID); err != nil {
		t.Log.Error("saving cursor", "error", err, "last_id", rec.ID)
		return
	}

	t.mu.Lock()
	t.saved = rec.ID
	t.mu.Unlock()
}

// stop is the terminal transition. It performs one final save when a
// per-message checkpoint failed along the way.
func (t *Tailer) stop(peerID int64) {
	t.mu.Lock()
	if t.state == tailStopped {
		t.mu.Unlock()
		return
	}
	t.state = tailStopped
	lastID, saved := t.lastID, t.saved
	t.mu.Unlock()

	if lastID <= saved {
		return
	}

	t.Log.Info("saving final state", "last_id", lastID)

	// The run context is cancelled by now, the save gets its own short
	// deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.State.SaveLastID(ctx, peerID, lastID); err != nil {
		t.Log.Error("saving final state", "error", err, "last_id", lastID)
	}
}
