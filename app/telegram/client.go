package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/constant"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"

	e "nuclight.org/tg-scraper/pkg/entities"
	"nuclight.org/tg-scraper/pkg/logger"
)

const (
	historyPageSize = 100
	updateBuffer    = 128
)

// Client is the MTProto message source. It requires an already
// authorized session: either the on-disk one created by the session
// command or a Telethon string session passed via the environment.
type Client struct {
	Log           logger.Logger
	APIID         int
	APIHash       string
	DataDir       string
	StringSession string

	client     *telegram.Client
	api        *tg.Client
	manager    *peers.Manager
	dispatcher tg.UpdateDispatcher

	mu       sync.Mutex
	resolved map[int64]peers.Peer
	subPeer  int64
	updates  chan e.Record
}

// Connect starts the client in the background and verifies the session
// is authorized. The returned stop function must be called on every exit
// path.
func (c *Client) Connect(ctx context.Context) (func() error, error) {
	storage, err := c.sessionStorage(ctx)
	if err != nil {
		return nil, err
	}

	c.dispatcher = tg.NewUpdateDispatcher()
	c.resolved = make(map[int64]peers.Peer)

	c.client = telegram.NewClient(c.APIID, c.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  c.dispatcher,
	})

	stop, err := bg.Connect(c.client)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}

	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("checking auth status: %w", err)
	}
	if !status.Authorized {
		_ = stop()
		return nil, errors.New("session is not authorized, run the session command first")
	}

	c.api = c.client.API()
	c.manager = peers.Options{}.Build(c.api)

	c.dispatcher.OnNewMessage(func(ctx context.Context, ent tg.Entities, u *tg.UpdateNewMessage) error {
		return c.deliver(ctx, ent, u.Message)
	})
	c.dispatcher.OnNewChannelMessage(func(ctx context.Context, ent tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return c.deliver(ctx, ent, u.Message)
	})

	c.Log.Info("telegram client connected")

	return stop, nil
}

func (c *Client) sessionStorage(ctx context.Context) (telegram.SessionStorage, error) {
	if c.StringSession == "" {
		return &session.FileStorage{Path: filepath.Join(c.DataDir, "session.json")}, nil
	}

	data, err := session.TelethonSession(c.StringSession)
	if err != nil {
		return nil, fmt.Errorf("decoding string session: %w", err)
	}

	storage := new(session.StorageMemory)
	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("importing string session: %w", err)
	}

	return storage, nil
}

// Resolve turns a numeric marked id or a @username into a stable peer
// identity, caching the input peer for later history requests.
func (c *Client) Resolve(ctx context.Context, target string) (e.Peer, error) {
	var (
		p   peers.Peer
		err error
	)

	if id, perr := strconv.ParseInt(target, 10, 64); perr == nil {
		p, err = c.manager.ResolveTDLibID(ctx, constant.TDLibPeerID(id))
	} else {
		p, err = c.manager.Resolve(ctx, target)
	}
	if err != nil {
		return e.Peer{}, err
	}

	peerID := int64(p.TDLibPeerID())

	c.mu.Lock()
	c.resolved[peerID] = p
	c.mu.Unlock()

	return e.Peer{ID: peerID, Title: p.VisibleName()}, nil
}

// History walks the backlog oldest first. Both bounds stay active: the
// walk starts at the later-starting of (minID, since), and each page is
// additionally filtered by date, because the upstream cannot combine an
// id bound with a date bound in a single request.
func (c *Client) History(ctx context.Context, peerID, minID int64, since time.Time, fn func(e.Record)) error {
	ip, err := c.inputPeer(peerID)
	if err != nil {
		return err
	}

	offsetID := int(minID)
	offsetDate := 0
	if minID == 0 && !since.IsZero() {
		offsetDate = int(since.Unix())
	}

	for {
		res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:       ip,
			OffsetID:   offsetID,
			OffsetDate: offsetDate,
			AddOffset:  -historyPageSize,
			Limit:      historyPageSize,
			MinID:      int(minID),
		})
		if err != nil {
			return fmt.Errorf("fetching history page: %w", err)
		}

		msgs, users, err := parseHistory(res)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}

		// Pages arrive newest first, deliver ascending.
		nextOffset := offsetID
		for i := len(msgs) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return err
			}

			m, ok := msgs[i].(*tg.Message)
			if !ok {
				// Service messages advance the offset but carry no payload.
				if sm, ok := msgs[i].(*tg.MessageService); ok && sm.ID > nextOffset {
					nextOffset = sm.ID
				}
				continue
			}

			if m.ID <= nextOffset {
				continue
			}
			nextOffset = m.ID

			rec := toRecord(peerID, m, users)
			if !since.IsZero() && rec.Date != nil && rec.Date.Before(since) {
				continue
			}

			fn(rec)
		}

		if nextOffset == offsetID {
			return nil
		}

		offsetID = nextOffset
		offsetDate = 0
	}
}

// Updates opens the single live subscription of the run. The returned
// channel carries normalized records for the given peer only.
func (c *Client) Updates(_ context.Context, peerID int64) (<-chan e.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.updates != nil {
		return nil, errors.New("already subscribed")
	}

	c.updates = make(chan e.Record, updateBuffer)
	c.subPeer = peerID

	return c.updates, nil
}

func (c *Client) deliver(ctx context.Context, ent tg.Entities, msg tg.MessageClass) error {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	peerID := markedPeerID(m.PeerID)

	c.mu.Lock()
	ch, want := c.updates, c.subPeer
	c.mu.Unlock()

	if ch == nil || peerID != want {
		return nil
	}

	select {
	case ch <- toRecord(peerID, m, ent.Users):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) inputPeer(peerID int64) (tg.InputPeerClass, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.resolved[peerID]
	if !ok {
		return nil, fmt.Errorf("peer %d is not resolved", peerID)
	}

	return p.InputPeer(), nil
}

func parseHistory(res tg.MessagesMessagesClass) ([]tg.MessageClass, map[int64]*tg.User, error) {
	var (
		msgs  []tg.MessageClass
		users []tg.UserClass
	)

	switch v := res.(type) {
	case *tg.MessagesMessages:
		msgs, users = v.Messages, v.Users
	case *tg.MessagesMessagesSlice:
		msgs, users = v.Messages, v.Users
	case *tg.MessagesChannelMessages:
		msgs, users = v.Messages, v.Users
	case *tg.MessagesMessagesNotModified:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unexpected history response %T", res)
	}

	userMap := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if usr, ok := u.(*tg.User); ok {
			userMap[usr.ID] = usr
		}
	}

	return msgs, userMap, nil
}

// markedPeerID converts an MTProto peer into the marked TDLib form the
// rest of the pipeline keys on.
func markedPeerID(p tg.PeerClass) int64 {
	var id constant.TDLibPeerID

	switch v := p.(type) {
	case *tg.PeerUser:
		id.User(v.UserID)
	case *tg.PeerChat:
		id.Chat(v.ChatID)
	case *tg.PeerChannel:
		id.Channel(v.ChannelID)
	}

	return int64(id)
}
