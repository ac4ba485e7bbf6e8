package storage

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	e "nuclight.org/tg-scraper/pkg/entities"
)

// LineSink emits one JSON object per record. Used as the stdout sink:
// records stay machine-parseable because all diagnostics go to stderr.
type LineSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewLineSink(w io.Writer) *LineSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &LineSink{enc: enc}
}

func (s *LineSink) Write(_ context.Context, _ int64, rec e.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enc.Encode(rec)
}
