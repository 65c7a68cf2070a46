// Package websockettest holds helpers for tests that drive run sockets.
package websockettest

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// RunURL converts an httptest server URL into the websocket URL for a run,
// carrying token as a query parameter when set.
func RunURL(serverURL, runID, token string) string {
	target := "ws" + strings.TrimPrefix(serverURL, "http") + "/runs/" + url.PathEscape(runID) + "/ws"
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}
	return target
}

// DialRun opens the websocket channel for a run.
func DialRun(serverURL, runID, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial(RunURL(serverURL, runID, token), header)
}

// DialIgnoringPongs establishes a WebSocket connection and disables the
// automatic pong responses so that tests can simulate an unresponsive peer.
func DialIgnoringPongs(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetPongHandler(func(string) error { return nil })
	return conn, resp, nil
}
