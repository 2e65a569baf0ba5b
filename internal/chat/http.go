package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPClient talks to the homeserver's client-server API. It covers
// exactly the calls the gateway makes: long-poll sync, joined-member
// counts, display-name profiles, join, and plain text sends.
type HTTPClient struct {
	baseURL     string
	userID      string
	accessToken string
	http        *http.Client
	syncTimeout time.Duration

	onMessage MessageHandler
	onInvite  InviteHandler

	nextBatch string
	txnSeq    atomic.Int64
}

func NewHTTPClient(baseURL, userID, accessToken string, syncTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		userID:      userID,
		accessToken: accessToken,
		syncTimeout: syncTimeout,
		http: &http.Client{
			// long-poll requests must outlive the server-side timeout
			Timeout: syncTimeout + 30*time.Second,
		},
	}
}

func (c *HTTPClient) UserID() string {
	return c.userID
}

// OnMessage registers the callback for text-message events. Must be set
// before Sync starts.
func (c *HTTPClient) OnMessage(fn MessageHandler) {
	c.onMessage = fn
}

// OnInvite registers the callback for invite events.
func (c *HTTPClient) OnInvite(fn InviteHandler) {
	c.onInvite = fn
}

type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[string]struct {
			Timeline struct {
				Events []timelineEvent `json:"events"`
			} `json:"timeline"`
		} `json:"join"`
		Invite map[string]struct {
			InviteState struct {
				Events []stateEvent `json:"events"`
			} `json:"invite_state"`
		} `json:"invite"`
	} `json:"rooms"`
}

type timelineEvent struct {
	Type           string `json:"type"`
	EventID        string `json:"event_id"`
	Sender         string `json:"sender"`
	OriginServerTS int64  `json:"origin_server_ts"`
	Content        struct {
		MsgType   string    `json:"msgtype"`
		Body      string    `json:"body"`
		RelatesTo *Relation `json:"m.relates_to"`
	} `json:"content"`
}

type stateEvent struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	StateKey string `json:"state_key"`
	Content  struct {
		Membership string `json:"membership"`
	} `json:"content"`
}

// Sync runs the long-poll loop until ctx is cancelled, dispatching each
// delivered event to the registered callbacks in delivery order. The
// first iteration (no since-token) seeds the position without replaying
// the backlog into the handlers.
func (c *HTTPClient) Sync(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := c.syncOnce(ctx)
		if err != nil {
			return err
		}

		initial := c.nextBatch == ""
		c.nextBatch = resp.NextBatch
		if initial {
			continue
		}

		c.dispatch(ctx, resp)
	}
}

func (c *HTTPClient) syncOnce(ctx context.Context) (*syncResponse, error) {
	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(c.syncTimeout.Milliseconds(), 10))
	if c.nextBatch != "" {
		q.Set("since", c.nextBatch)
	}

	var resp syncResponse
	if err := c.get(ctx, "/_matrix/client/v3/sync?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) dispatch(ctx context.Context, resp *syncResponse) {
	for roomID, room := range resp.Rooms.Join {
		for _, evt := range room.Timeline.Events {
			if evt.Type != "m.room.message" || c.onMessage == nil {
				continue
			}
			c.onMessage(ctx, MessageEvent{
				RoomID:         roomID,
				EventID:        evt.EventID,
				Sender:         evt.Sender,
				MsgType:        evt.Content.MsgType,
				Body:           evt.Content.Body,
				OriginServerTS: evt.OriginServerTS,
				RelatesTo:      evt.Content.RelatesTo,
			})
		}
	}

	for roomID, room := range resp.Rooms.Invite {
		if c.onInvite == nil {
			continue
		}
		for _, evt := range room.InviteState.Events {
			if evt.Type != "m.room.member" || evt.StateKey != c.userID {
				continue
			}
			if evt.Content.Membership != "invite" {
				continue
			}
			c.onInvite(ctx, InviteEvent{RoomID: roomID, Sender: evt.Sender})
		}
	}
}

// JoinedMemberCount returns the number of joined members in a room.
func (c *HTTPClient) JoinedMemberCount(ctx context.Context, roomID string) (int, error) {
	var resp struct {
		Joined map[string]json.RawMessage `json:"joined"`
	}
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/joined_members", url.PathEscape(roomID))
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("joined members: %w", err)
	}
	return len(resp.Joined), nil
}

// DisplayName returns a user's profile display name.
func (c *HTTPClient) DisplayName(ctx context.Context, userID string) (string, error) {
	var resp struct {
		DisplayName string `json:"displayname"`
	}
	path := fmt.Sprintf("/_matrix/client/v3/profile/%s/displayname", url.PathEscape(userID))
	if err := c.get(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("display name: %w", err)
	}
	return resp.DisplayName, nil
}

// JoinRoom accepts an invite or joins a public room.
func (c *HTTPClient) JoinRoom(ctx context.Context, roomID string) error {
	path := fmt.Sprintf("/_matrix/client/v3/join/%s", url.PathEscape(roomID))
	if err := c.post(ctx, path, map[string]any{}, nil); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

// SendText sends a plain text message into a room.
func (c *HTTPClient) SendText(ctx context.Context, roomID, body string) error {
	txn := fmt.Sprintf("gw%d.%d", time.Now().UnixMilli(), c.txnSeq.Add(1))
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		url.PathEscape(roomID), url.PathEscape(txn))
	payload := map[string]any{
		"msgtype": MsgTypeText,
		"body":    body,
	}
	if err := c.put(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *HTTPClient) put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("homeserver request failed")
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
