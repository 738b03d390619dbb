package extmodule

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"fun/internal/value"
)

// NetModule backs the http_get/http_post/ws_dial/ws_send/ws_recv/ws_close
// CALL_EXT builtins, grounded on internal/network's websocket connection
// table (same handle-by-id pattern as SQLModule) plus a plain net/http
// client for the HTTP builtins.
type NetModule struct {
	client *http.Client
	mu     sync.Mutex
	socks  map[string]*websocket.Conn
}

func NewNetModule() *NetModule {
	return &NetModule{
		client: &http.Client{Timeout: 30 * time.Second},
		socks:  make(map[string]*websocket.Conn),
	}
}

func (n *NetModule) Call(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "http_get":
		return n.httpGet(args)
	case "http_post":
		return n.httpPost(args)
	case "ws_dial":
		return n.wsDial(args)
	case "ws_send":
		return n.wsSend(args)
	case "ws_recv":
		return n.wsRecv(args)
	case "ws_close":
		return n.wsClose(args)
	default:
		return value.Nil(), errors.Errorf("net: unknown builtin %q", name)
	}
}

func httpResultMap(status int, body string) value.Value {
	m := value.NewMap()
	m.Set("status", value.Int(int64(status)))
	m.Set("body", value.String(body))
	return value.FromMap(m)
}

func (n *NetModule) httpGet(args []value.Value) (value.Value, error) {
	resp, err := n.client.Get(args[0].S)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "http_get")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "http_get")
	}
	return httpResultMap(resp.StatusCode, string(body)), nil
}

func (n *NetModule) httpPost(args []value.Value) (value.Value, error) {
	resp, err := n.client.Post(args[0].S, "application/octet-stream", strings.NewReader(args[1].S))
	if err != nil {
		return value.Nil(), errors.Wrap(err, "http_post")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "http_post")
	}
	return httpResultMap(resp.StatusCode, string(body)), nil
}

func (n *NetModule) wsDial(args []value.Value) (value.Value, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(args[0].S, nil)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "ws_dial")
	}
	id := uuid.NewString()
	n.mu.Lock()
	n.socks[id] = conn
	n.mu.Unlock()
	return value.String(id), nil
}

func (n *NetModule) socket(id string) (*websocket.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	conn, ok := n.socks[id]
	if !ok {
		return nil, errors.Errorf("net: socket %q not found", id)
	}
	return conn, nil
}

func (n *NetModule) wsSend(args []value.Value) (value.Value, error) {
	conn, err := n.socket(args[0].S)
	if err != nil {
		return value.Nil(), err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(args[1].S)); err != nil {
		return value.Nil(), errors.Wrap(err, "ws_send")
	}
	return value.Nil(), nil
}

func (n *NetModule) wsRecv(args []value.Value) (value.Value, error) {
	conn, err := n.socket(args[0].S)
	if err != nil {
		return value.Nil(), err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return value.Nil(), errors.Wrap(err, "ws_recv")
	}
	return value.String(string(msg)), nil
}

func (n *NetModule) wsClose(args []value.Value) (value.Value, error) {
	n.mu.Lock()
	conn, ok := n.socks[args[0].S]
	if ok {
		delete(n.socks, args[0].S)
	}
	n.mu.Unlock()
	if !ok {
		return value.Nil(), errors.Errorf("net: socket %q not found", args[0].S)
	}
	if err := conn.Close(); err != nil {
		return value.Nil(), errors.Wrap(err, "ws_close")
	}
	return value.Nil(), nil
}
