package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "nuclight.org/tg-scraper/pkg/entities"
)

const testPeerID int64 = -1009876

func testRecord(id int64) e.Record {
	d := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return e.Record{ID: id, PeerID: testPeerID, ChatID: testPeerID, Text: "hello", Date: &d}
}

func TestFileStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	state, err := NewFileState(dir)
	require.NoError(t, err)

	ctx := context.Background()

	id, err := state.LastID(ctx, testPeerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id, "missing state reads as 0")

	require.NoError(t, state.SaveLastID(ctx, testPeerID, 42))

	// A fresh instance over the same directory sees the saved value.
	fresh, err := NewFileState(dir)
	require.NoError(t, err)

	id, err = fresh.LastID(ctx, testPeerID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestFileStateCorruptFile(t *testing.T) {
	dir := t.TempDir()

	state, err := NewFileState(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "-1009876")
	require.NoError(t, os.WriteFile(path, []byte("not a number"), 0o644))

	id, err := state.LastID(context.Background(), testPeerID)
	assert.Error(t, err)
	assert.Equal(t, int64(0), id)
}

func TestFileStateIsolatesTargets(t *testing.T) {
	state, err := NewFileState(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, state.SaveLastID(ctx, 1, 10))
	require.NoError(t, state.SaveLastID(ctx, 2, 20))

	id, err := state.LastID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, err = state.LastID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), id)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(context.Background(), filepath.Join(t.TempDir(), "scraper.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestDBStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.LastID(ctx, testPeerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id, "absent row reads as 0")

	require.NoError(t, db.SaveLastID(ctx, testPeerID, 7))
	require.NoError(t, db.SaveLastID(ctx, testPeerID, 9))

	id, err = db.LastID(ctx, testPeerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	var rows int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM scraper_state").Scan(&rows))
	assert.Equal(t, 1, rows, "upsert keeps a single row per target")
}

func TestDBWriteUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, testPeerID, testRecord(5)))

	edited := testRecord(5)
	edited.Text = "hello, edited"
	require.NoError(t, db.Write(ctx, testPeerID, edited))

	var rows int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&rows))
	assert.Equal(t, 1, rows, "re-delivery must replace, not duplicate")

	var data string
	require.NoError(t, db.db.QueryRow(
		"SELECT data FROM messages WHERE chat_peer_id = ? AND message_id = ?",
		testPeerID, int64(5),
	).Scan(&data))

	var got e.Record
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "hello, edited", got.Text)
}

// Both checkpoint backends must be interchangeable: the same sequence of
// loads and saves observes the same cursor values.
func TestBackendEquivalence(t *testing.T) {
	fileState, err := NewFileState(t.TempDir())
	require.NoError(t, err)

	db := openTestDB(t)
	ctx := context.Background()

	type state interface {
		LastID(ctx context.Context, peerID int64) (int64, error)
		SaveLastID(ctx context.Context, peerID, id int64) error
	}

	saves := []int64{3, 8, 8, 21}

	for _, backend := range []state{fileState, db} {
		var observed []int64

		id, err := backend.LastID(ctx, testPeerID)
		require.NoError(t, err)
		observed = append(observed, id)

		for _, v := range saves {
			require.NoError(t, backend.SaveLastID(ctx, testPeerID, v))

			id, err := backend.LastID(ctx, testPeerID)
			require.NoError(t, err)
			observed = append(observed, id)
		}

		assert.Equal(t, []int64{0, 3, 8, 8, 21}, observed)
	}
}

func TestLineSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLineSink(&buf)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, testPeerID, testRecord(1)))
	require.NoError(t, sink.Write(ctx, testPeerID, testRecord(2)))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	for i, line := range lines {
		var got e.Record
		require.NoError(t, json.Unmarshal(line, &got))
		assert.Equal(t, int64(i+1), got.ID)
		assert.Equal(t, testPeerID, got.PeerID)
	}
}

func TestRebind(t *testing.T) {
	lite := &DB{pg: false}
	assert.Equal(t, "SELECT 1 WHERE a = ? AND b = ?", lite.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	pg := &DB{pg: true}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))
}
