package scraper

import (
	"context"
	"time"

	e "nuclight.org/tg-scraper/pkg/entities"
)

// catchUp streams the backlog newer than lastID (and no older than since)
// into the sink, tracking the running maximum id and a processed count.
// The source delivers oldest first, so the running maximum can advance
// without gaps. On a stream error it returns whatever accumulated so far;
// the caller persists that partial progress.
func (s *Scraper) catchUp(ctx context.Context, peerID, lastID int64, since time.Time) (int64, int, error) {
	maxID := lastID
	count := 0

	err := s.Source.History(ctx, peerID, lastID, since, func(rec e.Record) {
		if err := s.Sink.Write(ctx, peerID, rec); err != nil {
			// A single failed write does not abort the run, the
			// record is re-fetched and upserted on the next run.
			s.Log.Error("writing record", "error", err, "message_id", rec.ID)
			s.Metrics.RecordSinkFailure()
		} else {
			s.Metrics.RecordProcessed(rec.ID)
		}

		if rec.ID > maxID {
			maxID = rec.ID
		}
		count++
	})

	return maxID, count, err
}
