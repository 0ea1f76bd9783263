package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MalformedEventError is returned by Stream.Next for a frame that is not a
// decodable event. The stream stays usable.
type MalformedEventError struct {
	Raw []byte
	Err error
}

func (e *MalformedEventError) Error() string {
	if e.Err == nil {
		return "malformed stream event"
	}
	return "malformed stream event: " + e.Err.Error()
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a skippable decode failure.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// Stream is a server-to-client progress connection. Next must be called from
// a single goroutine; Close may be called from any goroutine.
type Stream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Dial opens the progress stream for clientID.
func (c *Client) Dial(ctx context.Context, clientID string) (*Stream, error) {
	u, err := c.streamURL(clientID)
	if err != nil {
		return nil, err
	}
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   c.dialer.DialContext,
		HandshakeTimeout: c.reqTimeout,
	}
	conn, resp, err := d.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	c.log.Debug().Str("client_id", clientID).Msg("backend: stream connected")
	return &Stream{conn: conn}, nil
}

func (c *Client) streamURL(clientID string) (string, error) {
	u, err := url.Parse(c.baseURL + c.endpoints.Stream)
	if err != nil {
		return "", fmt.Errorf("stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("clientId", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Next blocks until the next event. Binary frames (previews) are skipped.
func (s *Stream) Next() (Event, error) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return Event{}, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, &MalformedEventError{Raw: data, Err: err}
		}
		if ev.Type == "" {
			return Event{}, &MalformedEventError{Raw: data}
		}
		return ev, nil
	}
}

// Close sends a close frame, waiting at most timeout for it to be written,
// and closes the connection. It unblocks a pending Next.
func (s *Stream) Close(timeout time.Duration) error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Progress decodes a progress payload.
func (e Event) Progress() (ProgressData, error) {
	var p ProgressData
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return ProgressData{}, &MalformedEventError{Raw: e.Data, Err: err}
	}
	return p, nil
}

// Executing decodes an executing payload.
func (e Event) Executing() (ExecutingData, error) {
	var x ExecutingData
	if err := json.Unmarshal(e.Data, &x); err != nil {
		return ExecutingData{}, &MalformedEventError{Raw: e.Data, Err: err}
	}
	return x, nil
}
