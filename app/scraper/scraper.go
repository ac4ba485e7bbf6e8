package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "nuclight.org/tg-scraper/pkg/entities"
	"nuclight.org/tg-scraper/pkg/logger"
	"nuclight.org/tg-scraper/pkg/metrics"
)

// Source is the remote message source. History delivers the backlog in
// strictly ascending id order; Updates yields new messages for the peer
// until the context is cancelled, at most one live subscription per run.
type Source interface {
	Resolve(ctx context.Context, target string) (e.Peer, error)
	History(ctx context.Context, peerID, minID int64, since time.Time, fn func(e.Record)) error
	Updates(ctx context.Context, peerID int64) (<-chan e.Record, error)
}

// State persists the per-chat cursor. A LastID error is not fatal: the
// caller falls back to 0 and re-fetches inside the lookback window. After
// SaveLastID the in-memory value stays authoritative even if the write
// failed.
type State interface {
	LastID(ctx context.Context, peerID int64) (int64, error)
	SaveLastID(ctx context.Context, peerID, id int64) error
}

// Sink persists one normalized record. Writes must be idempotent per
// (peer, message id): catch-up after a failed checkpoint re-delivers.
type Sink interface {
	Write(ctx context.Context, peerID int64, rec e.Record) error
}

// Scraper runs the ingestion sequence for a single chat: resolve the
// target, load the cursor, stream the backlog into the sink, advance the
// cursor, then optionally keep tailing new messages until cancelled.
type Scraper struct {
	Log     logger.Logger
	Source  Source
	State   State
	Sink    Sink
	Metrics *metrics.Metrics

	// Lookback bounds the backlog fetch when no cursor exists and acts
	// as a safety floor next to it.
	Lookback time.Duration

	// Follow keeps the run alive after catch-up, appending new messages
	// as they arrive.
	Follow bool

	// Reset ignores the saved cursor and starts from 0.
	Reset bool
}

func (s *Scraper) Run(ctx context.Context, target string) error {
	peer, err := s.Source.Resolve(ctx, target)
	if err != nil {
		return fmt.Errorf("resolving target %q: %w", target, err)
	}

	log := s.Log.With("peer_id", peer.ID)
	log.Info("scraping", "title", peer.Title, "target", target)

	since := time.Now().UTC().Add(-s.Lookback)

	var lastID int64
	if s.Reset {
		log.Info("cursor reset requested, starting from 0")
	} else {
		lastID, err = s.State.LastID(ctx, peer.ID)
		if err != nil {
			log.Warn("reading cursor, starting from 0", "error", err)
			lastID = 0
		}
	}

	log.Info("fetching history", "min_id", lastID, "since", since.Format(time.RFC3339))

	maxID, count, fetchErr := s.catchUp(ctx, peer.ID, lastID, since)

	saved := lastID
	if maxID > lastID {
		if err := s.State.SaveLastID(ctx, peer.ID, maxID); err != nil {
			log.Error("saving cursor", "error", err, "last_id", maxID)
		} else {
			saved = maxID
		}
	}

	log.Info("catch-up done", "count", count, "last_id", maxID)

	if fetchErr != nil {
		// Partial progress is already checkpointed, the next run
		// re-fetches from maxID without gaps.
		if errors.Is(fetchErr, context.Canceled) {
			return nil
		}

		log.Error("history fetch aborted early", "error", fetchErr)
		return nil
	}

	if !s.Follow {
		return nil
	}

	tailer := &Tailer{
		Log:     log,
		Source:  s.Source,
		State:   s.State,
		Sink:    s.Sink,
		Metrics: s.Metrics,
	}

	return tailer.Run(ctx, peer.ID, maxID, saved)
}
