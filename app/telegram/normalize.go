package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	e "nuclight.org/tg-scraper/pkg/entities"
)

// toRecord flattens one raw message into the storage-ready form. It is
// total: fields the message kind lacks become nil or zero values, the
// pipeline never fails on shape.
func toRecord(peerID int64, m *tg.Message, users map[int64]*tg.User) e.Record {
	rec := e.Record{
		ID:        int64(m.ID),
		ChatID:    markedPeerID(m.PeerID),
		PeerID:    peerID,
		Text:      m.Message,
		Out:       m.Out,
		Mentioned: m.Mentioned,
		Silent:    m.Silent,
		Post:      m.Post,
		Pinned:    m.Pinned,
		Reactions: []e.Reaction{},
		Entities:  []e.Entity{},
	}

	if m.Date != 0 {
		d := time.Unix(int64(m.Date), 0).UTC()
		rec.Date = &d
	}
	if v, ok := m.GetEditDate(); ok {
		d := time.Unix(int64(v), 0).UTC()
		rec.EditDate = &d
	}
	if v, ok := m.GetViews(); ok {
		rec.Views = &v
	}
	if v, ok := m.GetForwards(); ok {
		rec.Forwards = &v
	}

	if from, ok := m.GetFromID(); ok {
		id := markedPeerID(from)
		rec.SenderID = &id
	}
	rec.Sender = senderOf(rec.SenderID, users)

	if reply, ok := m.GetReplyTo(); ok {
		if h, ok := reply.(*tg.MessageReplyHeader); ok {
			if id, ok := h.GetReplyToMsgID(); ok {
				v := int64(id)
				rec.ReplyToMsgID = &v
			}
		}
	}

	if fwd, ok := m.GetFwdFrom(); ok {
		rec.Forward = forwardOf(fwd)
	}

	if media, ok := m.GetMedia(); ok {
		rec.HasMedia = true
		name := media.TypeName()
		rec.MediaType = &name
	}

	if reactions, ok := m.GetReactions(); ok {
		rec.Reactions = reactionsOf(reactions)
	}
	if ents, ok := m.GetEntities(); ok {
		rec.Entities = entitiesOf(ents)
	}

	return rec
}

func senderOf(senderID *int64, users map[int64]*tg.User) *e.Sender {
	if senderID == nil {
		return nil
	}

	u, ok := users[*senderID]
	if !ok {
		return nil
	}

	s := &e.Sender{ID: u.ID, IsBot: u.Bot}
	if v, ok := u.GetUsername(); ok {
		s.Username = &v
	}
	if v, ok := u.GetFirstName(); ok {
		s.FirstName = &v
	}
	if v, ok := u.GetLastName(); ok {
		s.LastName = &v
	}

	return s
}

func forwardOf(h tg.MessageFwdHeader) *e.Forward {
	f := &e.Forward{}

	if from, ok := h.GetFromID(); ok {
		id := markedPeerID(from)
		f.FromID = &id
	}
	if name, ok := h.GetFromName(); ok {
		f.FromName = &name
	}
	if h.Date != 0 {
		d := time.Unix(int64(h.Date), 0).UTC()
		f.Date = &d
	}

	return f
}

func reactionsOf(r tg.MessageReactions) []e.Reaction {
	out := make([]e.Reaction, 0, len(r.Results))

	for _, rc := range r.Results {
		item := e.Reaction{Count: rc.Count}

		switch v := rc.Reaction.(type) {
		case *tg.ReactionEmoji:
			emoji := v.Emoticon
			item.Emoji = &emoji
		case *tg.ReactionCustomEmoji:
			id := v.DocumentID
			item.CustomEmojiID = &id
		}

		if order, ok := rc.GetChosenOrder(); ok {
			item.IReacted = true
			item.MyReactionOrder = &order
		}

		out = append(out, item)
	}

	return out
}

func entitiesOf(ents []tg.MessageEntityClass) []e.Entity {
	out := make([]e.Entity, 0, len(ents))

	for _, ent := range ents {
		item := e.Entity{Type: ent.TypeName()}

		if v, ok := ent.(interface{ GetOffset() int }); ok {
			item.Offset = v.GetOffset()
		}
		if v, ok := ent.(interface{ GetLength() int }); ok {
			item.Length = v.GetLength()
		}
		if v, ok := ent.(interface{ GetURL() string }); ok {
			u := v.GetURL()
			item.URL = &u
		}

		out = append(out, item)
	}

	return out
}
