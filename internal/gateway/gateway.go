// Package gateway is the request/response side of the protocol: the REST
// actions that mutate server-side room state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/emoji"
	"github.com/playful-game/roomsync/internal/gameerr"
	"github.com/playful-game/roomsync/internal/protocol"
)

type Client struct {
	base *url.URL
	hc   *http.Client
	lg   *zap.Logger
}

func New(baseURL string, lg *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	return &Client{
		base: u,
		hc:   &http.Client{Timeout: 10 * time.Second},
		lg:   lg,
	}, nil
}

type CreateRoomResponse struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	RoomCode string `json:"room_code"`
	Theme    string `json:"theme"`
	Hint     string `json:"hint"`
}

type joinRoomRequest struct {
	RoomCode string `json:"room_code"`
	UserName string `json:"user_name"`
}

type JoinRoomResponse struct {
	RoomID   string        `json:"room_id"`
	UserID   string        `json:"user_id"`
	IsLeader protocol.Bool `json:"is_leader"`
}

type submitTopicRequest struct {
	Topic           string   `json:"topic"`
	Emojis          []string `json:"emojis"`
	OriginalEmojis  []string `json:"originalEmojis"`
	DisplayedEmojis []string `json:"displayedEmojis"`
	DummyIndex      int      `json:"dummyIndex"`
	DummyEmoji      string   `json:"dummyEmoji"`
}

type submitAnswerRequest struct {
	UserID string `json:"user_id"`
	Answer string `json:"answer"`
}

// errorBody is the shape servers use for failed actions.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CreateRoom allocates a room and returns the creator's identity along
// with the round's theme and hint.
func (c *Client) CreateRoom(ctx context.Context) (CreateRoomResponse, error) {
	var out CreateRoomResponse
	err := c.do(ctx, http.MethodPost, "/api/rooms", nil, &out, http.StatusCreated, http.StatusOK)
	return out, err
}

// JoinRoom admits a participant; the server makes the most recent joiner
// the round leader.
func (c *Client) JoinRoom(ctx context.Context, roomCode, userName string) (JoinRoomResponse, error) {
	var out JoinRoomResponse
	err := c.do(ctx, http.MethodPost, "/api/user",
		joinRoomRequest{RoomCode: roomCode, UserName: userName}, &out, http.StatusOK)
	return out, err
}

// SubmitTopic sets the round content including the decoy split.
func (c *Client) SubmitTopic(ctx context.Context, roomID, topic string, inj emoji.Injection) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/topic",
		submitTopicRequest{
			Topic:           topic,
			Emojis:          inj.Original,
			OriginalEmojis:  inj.Original,
			DisplayedEmojis: inj.Displayed,
			DummyIndex:      inj.DummyIndex,
			DummyEmoji:      inj.DummyEmoji,
		}, nil, http.StatusOK)
}

// SubmitAnswer records the leader's final guess.
func (c *Client) SubmitAnswer(ctx context.Context, roomID, userID, answer string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/answer",
		submitAnswerRequest{UserID: userID, Answer: answer}, nil, http.StatusOK)
}

// StartGame advances the room out of the waiting phase.
func (c *Client) StartGame(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/start", nil, nil, http.StatusOK)
}

// FinishRoom ends the room.
func (c *Client) FinishRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/finish", nil, nil, http.StatusOK)
}

// SkipDiscussion forces the discussion phase to end early.
func (c *Client) SkipDiscussion(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/skip-discussion", nil, nil, http.StatusOK)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, okStatuses ...int) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return gameerr.Wrap(gameerr.CodeUnknown, "encode request", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return gameerr.Wrap(gameerr.CodeUnknown, "build request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.lg.Debug("gateway request", zap.String("method", method), zap.String("path", path))
	resp, err := c.hc.Do(req)
	if err != nil {
		return classifyTransportErr(path, err)
	}
	defer resp.Body.Close()

	for _, s := range okStatuses {
		if resp.StatusCode == s {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return gameerr.Wrap(gameerr.CodeServer, "decode response", err)
			}
			return nil
		}
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("%s returned status %d", path, resp.StatusCode)
	}
	ge := gameerr.FromStatus(resp.StatusCode, msg)
	if eb.Code != "" {
		ge.Message = fmt.Sprintf("%s (%s)", msg, eb.Code)
	}
	c.lg.Warn("gateway action rejected",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("code", string(ge.Code)))
	return ge
}

func classifyTransportErr(path string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return gameerr.Wrap(gameerr.CodeTimeout, path+" timed out", err)
	case errors.Is(err, context.Canceled):
		return gameerr.Wrap(gameerr.CodeUnknown, path+" canceled", err)
	default:
		return gameerr.Wrap(gameerr.CodeNetwork, path+" failed", err)
	}
}
