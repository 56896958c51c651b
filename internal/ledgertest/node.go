// Package ledgertest runs an in-process websocket server that speaks enough
// of the XRP Ledger API for client tests.
package ledgertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Error is a node error reply such as actNotFound.
type Error struct {
	Code    string
	Message string
}

// Handler answers one command. A nil result with a nil error replies with an
// empty result object. Returning NoReply leaves the request unanswered.
type Handler func(req gjson.Result) (result any, err *Error)

// NoReply makes a handler swallow the request.
var NoReply = &Error{Code: "__noreply"}

type Node struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	conns    map[*websocket.Conn]*sync.Mutex
	requests []gjson.Result

	opened atomic.Int64
	closed atomic.Int64
}

func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		conns:    make(map[*websocket.Conn]*sync.Mutex),
		log:      zerolog.Nop(),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// URL is the ws:// endpoint of the node.
func (n *Node) URL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

func (n *Node) Handle(command string, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[command] = handler
}

// Opened counts accepted connections, Closed those that have ended.
func (n *Node) Opened() int {
	return int(n.opened.Load())
}

func (n *Node) Closed() int {
	return int(n.closed.Load())
}

func (n *Node) Open() int {
	return n.Opened() - n.Closed()
}

// Requests returns the requests received for command, or all requests when
// command is empty.
func (n *Node) Requests(command string) []gjson.Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]gjson.Result, 0)
	for _, req := range n.requests {
		if command == "" || req.Get("command").String() == command {
			out = append(out, req)
		}
	}
	return out
}

// Push sends msg to every open connection.
func (n *Node) Push(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}

	n.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(n.conns))
	for c, mu := range n.conns {
		conns[c] = mu
	}
	n.mu.Unlock()

	for c, mu := range conns {
		mu.Lock()
		_ = c.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()
	}
}

// Drop closes every open connection without a close handshake.
func (n *Node) Drop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for c := range n.conns {
		_ = c.UnderlyingConn().Close()
	}
}

func (n *Node) Close() {
	n.Drop()
	n.server.CloseClientConnections()
	n.server.Close()
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	c, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	writeMu := &sync.Mutex{}

	n.mu.Lock()
	n.conns[c] = writeMu
	n.mu.Unlock()
	n.opened.Add(1)

	defer func() {
		n.mu.Lock()
		delete(n.conns, c)
		n.mu.Unlock()
		_ = c.Close()
		n.closed.Add(1)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		req := gjson.ParseBytes(data)
		command := req.Get("command").String()

		n.mu.Lock()
		n.requests = append(n.requests, req)
		handler, ok := n.handlers[command]
		n.mu.Unlock()

		reply := map[string]any{
			"type": "response",
		}
		if id := req.Get("id"); id.Exists() {
			reply["id"] = json.RawMessage(id.Raw)
		}

		var result any
		var rerr *Error
		if ok {
			result, rerr = handler(req)
		} else {
			rerr = &Error{Code: "unknownCmd", Message: "Unknown method."}
		}

		if rerr == NoReply {
			continue
		}

		if rerr != nil {
			reply["status"] = "error"
			reply["error"] = rerr.Code
			if rerr.Message != "" {
				reply["error_message"] = rerr.Message
			}
			reply["request"] = json.RawMessage(req.Raw)
		} else {
			if result == nil {
				result = map[string]any{}
			}
			reply["status"] = "success"
			reply["result"] = result
		}

		out, err := json.Marshal(reply)
		if err != nil {
			n.log.Error().Err(err).Msg("failed to marshal reply")
			return
		}

		writeMu.Lock()
		err = c.WriteMessage(websocket.TextMessage, out)
		writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
