package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/hszk-dev/tubelytics/internal/dispatch"
)

// envelope is any message the server sends.
type envelope struct {
	ID      string               `json:"id"`
	Type    dispatch.RequestType `json:"type"`
	Payload json.RawMessage      `json:"payload"`
	Error   string               `json:"error"`
	Kind    dispatch.ErrorKind   `json:"kind"`
}

// client is one websocket connection bound to a session.
type client struct {
	conn    *websocket.Conn
	session string
	seq     int
}

// dial connects to server and waits for the session announcement.
func dial(ctx context.Context, server, session string) (*client, error) {
	u, err := url.Parse(strings.TrimRight(server, "/") + "/v1/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if session != "" {
		u.RawQuery = url.Values{"session": {session}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}

	c := &client{conn: conn}
	env, err := c.read(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if env.Type != dispatch.TypeSession {
		conn.Close()
		return nil, fmt.Errorf("expected session announcement, got %q", env.Type)
	}

	var p dispatch.SessionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		conn.Close()
		return nil, fmt.Errorf("invalid session announcement: %w", err)
	}
	c.session = p.SessionID
	return c, nil
}

// do sends req and decodes the matching reply's payload into out.
func (c *client) do(ctx context.Context, req dispatch.Request, out any) error {
	c.seq++
	req.ID = "cli-" + strconv.Itoa(c.seq)

	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	for {
		env, err := c.read(ctx)
		if err != nil {
			return err
		}
		if env.ID != req.ID {
			continue
		}
		if env.Kind != "" {
			return fmt.Errorf("%s: %s", env.Kind, env.Error)
		}
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
		return nil
	}
}

func (c *client) read(ctx context.Context) (envelope, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return envelope{}, err
		}
	}

	var env envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		if ctx.Err() != nil {
			return envelope{}, errors.Join(ctx.Err(), err)
		}
		return envelope{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return env, nil
}

func (c *client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
