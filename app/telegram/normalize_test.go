package telegram

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkedPeerID(t *testing.T) {
	assert.Equal(t, int64(777), markedPeerID(&tg.PeerUser{UserID: 777}))
	assert.Equal(t, int64(-555), markedPeerID(&tg.PeerChat{ChatID: 555}))
	assert.Equal(t, int64(-1000000001234), markedPeerID(&tg.PeerChannel{ChannelID: 1234}))
}

func TestToRecord(t *testing.T) {
	sent := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	edited := sent.Add(5 * time.Minute)
	forwarded := sent.Add(-time.Hour)

	user := &tg.User{ID: 777, FirstName: "Ada", Username: "ada"}
	user.SetFlags()

	reply := &tg.MessageReplyHeader{ReplyToMsgID: 41}
	reply.SetFlags()

	fwd := tg.MessageFwdHeader{FromName: "someone", Date: int(forwarded.Unix())}
	fwd.SetFlags()

	m := &tg.Message{
		ID:        42,
		Date:      int(sent.Unix()),
		EditDate:  int(edited.Unix()),
		Message:   "hello world",
		PeerID:    &tg.PeerChannel{ChannelID: 1234},
		FromID:    &tg.PeerUser{UserID: 777},
		Mentioned: true,
		Pinned:    true,
		Views:     3,
		ReplyTo:   reply,
		FwdFrom:   fwd,
		Media:     &tg.MessageMediaPhoto{},
		Entities: []tg.MessageEntityClass{
			&tg.MessageEntityTextURL{Offset: 0, Length: 5, URL: "https://example.com"},
		},
		Reactions: tg.MessageReactions{
			Results: []tg.ReactionCount{
				{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 2},
			},
		},
	}
	m.SetFlags()

	peerID := markedPeerID(m.PeerID)
	rec := toRecord(peerID, m, map[int64]*tg.User{777: user})

	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, int64(-1000000001234), rec.ChatID)
	assert.Equal(t, peerID, rec.PeerID)
	assert.Equal(t, "hello world", rec.Text)
	assert.True(t, rec.Mentioned)
	assert.True(t, rec.Pinned)
	assert.False(t, rec.Out)

	require.NotNil(t, rec.Date)
	assert.Equal(t, sent, *rec.Date)
	require.NotNil(t, rec.EditDate)
	assert.Equal(t, edited, *rec.EditDate)

	require.NotNil(t, rec.SenderID)
	assert.Equal(t, int64(777), *rec.SenderID)
	require.NotNil(t, rec.Sender)
	assert.Equal(t, int64(777), rec.Sender.ID)
	require.NotNil(t, rec.Sender.Username)
	assert.Equal(t, "ada", *rec.Sender.Username)
	require.NotNil(t, rec.Sender.FirstName)
	assert.Equal(t, "Ada", *rec.Sender.FirstName)
	assert.Nil(t, rec.Sender.LastName)

	require.NotNil(t, rec.Views)
	assert.Equal(t, 3, *rec.Views)
	assert.Nil(t, rec.Forwards)

	require.NotNil(t, rec.ReplyToMsgID)
	assert.Equal(t, int64(41), *rec.ReplyToMsgID)

	require.NotNil(t, rec.Forward)
	require.NotNil(t, rec.Forward.FromName)
	assert.Equal(t, "someone", *rec.Forward.FromName)
	assert.Nil(t, rec.Forward.FromID)

	assert.True(t, rec.HasMedia)
	require.NotNil(t, rec.MediaType)
	assert.Equal(t, "messageMediaPhoto", *rec.MediaType)

	require.Len(t, rec.Entities, 1)
	assert.Equal(t, "messageEntityTextUrl", rec.Entities[0].Type)
	assert.Equal(t, 5, rec.Entities[0].Length)
	require.NotNil(t, rec.Entities[0].URL)
	assert.Equal(t, "https://example.com", *rec.Entities[0].URL)

	require.Len(t, rec.Reactions, 1)
	require.NotNil(t, rec.Reactions[0].Emoji)
	assert.Equal(t, "👍", *rec.Reactions[0].Emoji)
	assert.Equal(t, 2, rec.Reactions[0].Count)
	assert.False(t, rec.Reactions[0].IReacted)
}

// The normalizer is total: a message with nothing but an id and a peer
// must still produce a usable record.
func TestToRecordBareMessage(t *testing.T) {
	m := &tg.Message{
		ID:     7,
		PeerID: &tg.PeerUser{UserID: 99},
	}
	m.SetFlags()

	rec := toRecord(99, m, nil)

	assert.Equal(t, int64(7), rec.ID)
	assert.Nil(t, rec.Date)
	assert.Nil(t, rec.Sender)
	assert.Nil(t, rec.SenderID)
	assert.Nil(t, rec.Forward)
	assert.Nil(t, rec.MediaType)
	assert.False(t, rec.HasMedia)
	assert.Empty(t, rec.Text)
	assert.NotNil(t, rec.Reactions)
	assert.NotNil(t, rec.Entities)
	assert.Empty(t, rec.Reactions)
	assert.Empty(t, rec.Entities)
}
