package entities

import "time"

// Peer is a resolved chat identity. The ID is the marked (TDLib style)
// peer id, stable across runs for the same chat.
type Peer struct {
	ID    int64
	Title string
}

// Sender describes who sent a message, nil if the source did not include it.
type Sender struct {
	ID        int64   `json:"id"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsBot     bool    `json:"is_bot"`
}

// Forward carries forwarded-from provenance.
type Forward struct {
	FromID   *int64     `json:"from_id"`
	FromName *string    `json:"from_name"`
	Date     *time.Time `json:"date"`
}

// Reaction is one aggregated reaction on a message.
type Reaction struct {
	Emoji           *string `json:"emoji"`
	CustomEmojiID   *int64  `json:"custom_emoji_id"`
	Count           int     `json:"count"`
	IReacted        bool    `json:"i_reacted"`
	MyReactionOrder *int    `json:"my_reaction_order"`
}

// Entity is a text annotation (link, mention, formatting) inside a message.
type Entity struct {
	Type   string  `json:"type"`
	Offset int     `json:"offset"`
	Length int     `json:"length"`
	URL    *string `json:"url"`
}

// Record is the normalized, storage-ready form of one message. It is
// constructed once by the normalizer and never mutated afterwards;
// re-ingestion of the same (peer, id) pair replaces the stored copy.
type Record struct {
	ID       int64      `json:"id"`
	ChatID   int64      `json:"chat_id"`
	PeerID   int64      `json:"peer_id"`
	Date     *time.Time `json:"date"`
	Text     string     `json:"text"`
	SenderID *int64     `json:"sender_id"`
	Sender   *Sender    `json:"sender"`

	EditDate  *time.Time `json:"edit_date"`
	Out       bool       `json:"out"`
	Mentioned bool       `json:"mentioned"`
	Silent    bool       `json:"silent"`
	Post      bool       `json:"post"`
	Views     *int       `json:"views"`
	Forwards  *int       `json:"forwards"`
	Pinned    bool       `json:"pinned"`

	ReplyToMsgID *int64   `json:"reply_to_msg_id"`
	Forward      *Forward `json:"forward"`

	HasMedia  bool    `json:"has_media"`
	MediaType *string `json:"media_type"`

	Reactions []Reaction `json:"reactions"`
	Entities  []Entity   `json:"entities"`
}

func (r *Record) HasText() bool {
	return r.Text != ""
}
