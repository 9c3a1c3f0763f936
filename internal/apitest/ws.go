package apitest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
	_ = s.conn.Close()
}

func (s *Server) handleSocket(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid user ID")
	}
	authUser, ok := s.bearer(c.Request())
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}
	if authUser != userID {
		return jsonError(c, http.StatusForbidden, "Forbidden")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	sock := &socket{conn: conn}

	s.mu.Lock()
	s.sockets[userID] = append(s.sockets[userID], sock)
	s.socketWait.Broadcast()
	s.mu.Unlock()
	s.logger.Debug("apitest socket connected", zap.Int64("user_id", userID))

	// Drain until the peer goes away; clients never send anything useful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	list := s.sockets[userID]
	for i, other := range list {
		if other == sock {
			s.sockets[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.socketWait.Broadcast()
	s.mu.Unlock()
	_ = conn.Close()
	s.logger.Debug("apitest socket closed", zap.Int64("user_id", userID))
	return nil
}

// Push sends msg as JSON to every socket open for userID.
func (s *Server) Push(userID int64, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.PushRaw(userID, data)
}

// PushRaw sends data verbatim to every socket open for userID. The first
// write error is returned.
func (s *Server) PushRaw(userID int64, data []byte) error {
	s.mu.Lock()
	list := append([]*socket(nil), s.sockets[userID]...)
	s.mu.Unlock()

	var first error
	for _, sock := range list {
		if err := sock.write(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// notify pushes a task_update to each user.
func (s *Server) notify(userIDs ...int64) {
	for _, id := range userIDs {
		if err := s.Push(id, v1.PushMessage{Type: v1.PushTypeTaskUpdate}); err != nil {
			s.logger.Debug("apitest push failed", zap.Int64("user_id", id), zap.Error(err))
		}
	}
}

// SocketCount returns how many sockets are open for userID.
func (s *Server) SocketCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets[userID])
}

// WaitForSocket blocks until at least one socket is open for userID or
// timeout elapses.
func (s *Server) WaitForSocket(userID int64, timeout time.Duration) bool {
	return s.waitSockets(userID, timeout, func(n int) bool { return n > 0 })
}

// WaitForNoSocket blocks until every socket for userID has closed or
// timeout elapses.
func (s *Server) WaitForNoSocket(userID int64, timeout time.Duration) bool {
	return s.waitSockets(userID, timeout, func(n int) bool { return n == 0 })
}

func (s *Server) waitSockets(userID int64, timeout time.Duration, done func(int) bool) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.socketWait.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !done(len(s.sockets[userID])) {
		if !time.Now().Before(deadline) {
			return false
		}
		s.socketWait.Wait()
	}
	return true
}

// DropSockets closes every socket for userID from the server side.
func (s *Server) DropSockets(userID int64) {
	s.mu.Lock()
	list := append([]*socket(nil), s.sockets[userID]...)
	s.mu.Unlock()
	for _, sock := range list {
		sock.close()
	}
}
