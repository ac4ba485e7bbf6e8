package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"
)

const dialogPageSize = 500

// Dialog is one entry of the account's dialog list, shaped for JSON
// lines output.
type Dialog struct {
	Title             string  `json:"title"`
	ID                int64   `json:"id"`
	Username          *string `json:"username"`
	Type              string  `json:"type"`
	PeerID            int64   `json:"peer_id"`
	IsSelf            bool    `json:"is_self"`
	IsBot             bool    `json:"is_bot"`
	Deleted           bool    `json:"deleted"`
	ParticipantsCount *int    `json:"participants_count"`
	Megagroup         bool    `json:"megagroup"`
	Broadcast         bool    `json:"broadcast"`
}

// Dialogs lists the chats the session can access.
func (c *Client) Dialogs(ctx context.Context) ([]Dialog, error) {
	res, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      dialogPageSize,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching dialogs: %w", err)
	}

	var (
		users []tg.UserClass
		chats []tg.ChatClass
	)

	switch v := res.(type) {
	case *tg.MessagesDialogs:
		users, chats = v.Users, v.Chats
	case *tg.MessagesDialogsSlice:
		users, chats = v.Users, v.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", res)
	}

	out := make([]Dialog, 0, len(users)+len(chats))

	for _, uc := range users {
		u, ok := uc.(*tg.User)
		if !ok {
			continue
		}

		var id constant.TDLibPeerID
		id.User(u.ID)

		d := Dialog{
			Title:   strings.TrimSpace(u.FirstName + " " + u.LastName),
			ID:      u.ID,
			Type:    "User",
			PeerID:  int64(id),
			IsSelf:  u.Self,
			IsBot:   u.Bot,
			Deleted: u.Deleted,
		}
		if v, ok := u.GetUsername(); ok {
			d.Username = &v
		}
		if d.Title == "" {
			d.Title = "NoTitle"
		}

		out = append(out, d)
	}

	for _, cc := range chats {
		switch v := cc.(type) {
		case *tg.Chat:
			var id constant.TDLibPeerID
			id.Chat(v.ID)

			count := v.ParticipantsCount
			out = append(out, Dialog{
				Title:             v.Title,
				ID:                v.ID,
				Type:              "Chat",
				PeerID:            int64(id),
				ParticipantsCount: &count,
			})
		case *tg.Channel:
			var id constant.TDLibPeerID
			id.Channel(v.ID)

			d := Dialog{
				Title:     v.Title,
				ID:        v.ID,
				Type:      "Channel",
				PeerID:    int64(id),
				Megagroup: v.Megagroup,
				Broadcast: v.Broadcast,
			}
			if un, ok := v.GetUsername(); ok {
				d.Username = &un
			}
			if pc, ok := v.GetParticipantsCount(); ok {
				d.ParticipantsCount = &pc
			}

			out = append(out, d)
		}
	}

	return out, nil
}
