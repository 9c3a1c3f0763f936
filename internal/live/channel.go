// Package live keeps a task view in step with the server.
//
// The server pushes {"type":"task_update"} over a per-user WebSocket when a
// task changes. A Channel reads those messages into an Inbox, and a
// Reconciler turns bursts of signals into single, rate-limited reloads.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskdeck/internal/config"
	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("live: channel closed")

// Config tunes the channel and reconciler.
type Config struct {
	// URL is the socket root; the user id is appended as a path segment.
	URL               string
	Debounce          time.Duration
	MinReloadInterval time.Duration
	// Reconnect redials after a dropped connection. Off means a drop ends Run.
	Reconnect      bool
	ReconnectDelay time.Duration
	// HandshakeTimeout bounds the WebSocket dial. Zero uses the dialer default.
	HandshakeTimeout time.Duration
}

// FromAppConfig builds the live configuration.
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		URL:               cfg.API.WSURL,
		Debounce:          cfg.Live.Debounce,
		MinReloadInterval: cfg.Live.MinReloadInterval,
		Reconnect:         cfg.Live.Reconnect,
		ReconnectDelay:    cfg.Live.ReconnectDelay,
	}
}

// Channel is the push socket for one user.
type Channel struct {
	cfg     Config
	inbox   *Inbox
	dialer  *websocket.Dialer
	logger  *logging.Logger
	metrics *Metrics

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewChannel creates a channel that signals inbox on every task_update.
func NewChannel(cfg Config, inbox *Inbox, logger *logging.Logger) *Channel {
	if logger == nil {
		logger = logging.Nop()
	}
	dialer := *websocket.DefaultDialer
	if cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.HandshakeTimeout
	}
	return &Channel{
		cfg:     cfg,
		inbox:   inbox,
		dialer:  &dialer,
		logger:  logger.Named("live"),
		metrics: NewMetrics(),
	}
}

// Endpoint returns the socket URL for userID.
func (c *Channel) Endpoint(userID int64) string {
	return strings.TrimRight(c.cfg.URL, "/") + "/" + strconv.FormatInt(userID, 10)
}

// Run connects and reads until ctx is done, Close is called or the
// connection drops. A drop returns nil unless Reconnect is set, in which
// case Run redials after ReconnectDelay. A failed first dial is returned.
func (c *Channel) Run(ctx context.Context, userID int64, token string) error {
	ctx = logging.WithUserID(ctx, userID)
	endpoint := c.Endpoint(userID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	connected := false
	for {
		if c.isClosed() {
			return ErrClosed
		}

		conn, _, err := c.dialer.DialContext(ctx, endpoint, header)
		switch {
		case err == nil:
			connected = true
			err = c.serve(ctx, conn)
		case ctx.Err() != nil:
			return nil
		case !connected || !c.cfg.Reconnect:
			return fmt.Errorf("dial %s: %w", endpoint, err)
		}

		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		if !c.cfg.Reconnect {
			c.logger.Info(ctx, "push socket dropped, live updates stopped", zap.Error(err))
			return nil
		}

		c.logger.Info(ctx, "push socket dropped, reconnecting",
			zap.Duration("delay", c.cfg.ReconnectDelay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// serve reads messages until the connection fails.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.metrics.Connected.Set(1)
	c.logger.Debug(ctx, "push socket connected")
	defer func() {
		c.metrics.Connected.Set(0)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { c.shutdown(conn) })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handle(ctx, data)
	}
}

func (c *Channel) handle(ctx context.Context, data []byte) {
	var msg v1.PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.metrics.recordMessage(labelInvalid)
		c.logger.Debug(ctx, "ignoring undecodable push message", zap.Error(err))
		return
	}
	if msg.Type != v1.PushTypeTaskUpdate {
		c.metrics.recordMessage(labelOther)
		c.logger.Trace(ctx, "ignoring push message", zap.String("type", msg.Type))
		return
	}
	c.metrics.recordMessage(labelTaskUpdate)
	c.inbox.Signal()
}

// Close sends a close frame and closes the socket. Run returns afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.shutdown(conn)
	}
}

func (c *Channel) shutdown(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
