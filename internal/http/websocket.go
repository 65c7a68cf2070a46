package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/progression"
	"hordeforge/engine/internal/session"
)

const (
	socketWriteWait   = 10 * time.Second
	socketMaxMessage  = 4 << 10
	socketSendBuffer  = 16
	socketMessageRun  = "run"
	socketMessageFail = "error"
)

type socketCounter struct{ n atomic.Int64 }

func (c *socketCounter) Load() int64 { return c.n.Load() }

// SocketMessage is every frame the server sends on a run channel.
type SocketMessage struct {
	Type    string                `json:"type"`
	Run     *progression.Snapshot `json:"run,omitempty"`
	Command *progression.Command  `json:"command,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (h *HandlerSet) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
}

func (h *HandlerSet) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return true
	}
	_, ok := h.origins[strings.ToLower(parsed.Host)]
	return ok
}

// serveRunSocket streams run snapshots to the client and executes the
// commands it sends.
func (h *HandlerSet) serveRunSocket(w http.ResponseWriter, r *http.Request, s *session.Session, logger *logging.Logger) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	h.sockets.n.Add(1)
	defer h.sockets.n.Add(-1)

	updates, cancel := s.Subscribe(socketSendBuffer)
	defer cancel()
	send := make(chan SocketMessage, socketSendBuffer)
	done := make(chan struct{})

	//1.- The writer owns the connection for writes: snapshots, errors and pings.
	go func() {
		ticker := time.NewTicker(h.pingInterval)
		defer func() {
			ticker.Stop()
			conn.Close()
		}()
		write := func(msg SocketMessage) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			return conn.WriteJSON(msg) == nil
		}
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"), time.Now().Add(socketWriteWait))
					return
				}
				if !write(SocketMessage{Type: socketMessageRun, Run: &snapshot}) {
					return
				}
			case msg := <-send:
				if !write(msg) {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	if snapshot, err := s.Snapshot(); err == nil {
		send <- SocketMessage{Type: socketMessageRun, Run: &snapshot}
	}

	//2.- The reader runs on the handler goroutine until the client goes away.
	conn.SetReadLimit(socketMaxMessage)
	readWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	defer close(done)
	for {
		var cmd progression.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("run socket closed", logging.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if _, err := s.Execute(cmd); reportCommandError(err) {
			failed := cmd
			select {
			case send <- SocketMessage{Type: socketMessageFail, Command: &failed, Error: err.Error()}:
			default:
			}
		}
	}
}

// reportCommandError reports whether err should reach the client as an error
// frame. An invariant breach after a choice still applied it, and the run frame
// has already gone out.
func reportCommandError(err error) bool {
	return err != nil && !errors.Is(err, progression.ErrInvariantViolated)
}
