// Package wsapi exposes subscription operations over a WebSocket, grounded
// on the teacher's graphql.Handler/ServeJSONSocket envelope protocol
// ({id, type, message} in both directions), adapted to the gateway's
// Execute/Subsequent contract rather than the teacher's reactive.Rerunner
// (SPEC_FULL.md domain stack: gorilla/websocket as the subscription wire
// transport for HTTP clients).
package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stitchgql/federate/gateway"
	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/internal/logging"
	"github.com/stitchgql/federate/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inEnvelope is one client-to-server message.
type inEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// outEnvelope is one server-to-client message.
type outEnvelope struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Message interface{} `json:"message,omitempty"`
}

type subscribeMessage struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler upgrades incoming requests to WebSocket and serves subscription
// operations run through gw, one JSON socket connection at a time.
type Handler struct {
	gw  *gateway.Gateway
	log logging.Logger
}

// NewHandler builds a Handler over gw. A nil log installs a no-op logger.
func NewHandler(gw *gateway.Gateway, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	return &Handler{gw: gw, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("wsapi: upgrade failed", "error", err)
		return
	}
	defer socket.Close()

	c := &conn{socket: socket, gw: h.gw, log: h.log, subs: make(map[string]*stream.Consolidator)}
	defer c.closeAll()

	for {
		var env inEnvelope
		if err := socket.ReadJSON(&env); err != nil {
			if !isCloseError(err) {
				h.log.Warn("wsapi: read failed", "error", err)
			}
			return
		}
		c.handle(r.Context(), &env)
	}
}

func isCloseError(err error) bool {
	_, ok := err.(*websocket.CloseError)
	return ok || err == websocket.ErrCloseSent
}

type conn struct {
	writeMu sync.Mutex
	socket  *websocket.Conn
	gw      *gateway.Gateway
	log     logging.Logger

	mu   sync.Mutex
	subs map[string]*stream.Consolidator
}

func (c *conn) writeOrClose(id, typ string, message interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.socket.WriteJSON(outEnvelope{ID: id, Type: typ, Message: message}); err != nil && !isCloseError(err) {
		c.log.Warn("wsapi: write failed", "error", err)
		c.socket.Close()
	}
}

func (c *conn) handle(ctx context.Context, env *inEnvelope) {
	switch env.Type {
	case "subscribe":
		var msg subscribeMessage
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			c.writeOrClose(env.ID, "error", err.Error())
			return
		}
		c.subscribe(ctx, env.ID, msg)

	case "unsubscribe":
		c.unsubscribe(env.ID)

	default:
		c.writeOrClose(env.ID, "error", "unknown message type")
	}
}

func (c *conn) subscribe(ctx context.Context, id string, msg subscribeMessage) {
	c.mu.Lock()
	if _, exists := c.subs[id]; exists {
		c.mu.Unlock()
		c.writeOrClose(id, "error", "duplicate subscription id")
		return
	}
	c.mu.Unlock()

	resp, err := c.gw.Execute(ctx, gateway.Request{
		Query:         msg.Query,
		OperationName: msg.OperationName,
		Variables:     msg.Variables,
	})
	if err != nil {
		c.writeOrClose(id, "error", err.Error())
		return
	}
	if len(resp.Errors) > 0 {
		c.writeOrClose(id, "error", firstMessage(resp.Errors))
		return
	}
	if resp.Data != nil {
		c.writeOrClose(id, "update", resp.Data)
	}
	if !resp.HasNext || resp.Subsequent == nil {
		c.writeOrClose(id, "complete", nil)
		return
	}

	c.mu.Lock()
	c.subs[id] = resp.Subsequent
	c.mu.Unlock()

	go c.pump(ctx, id, resp.Subsequent)
}

func (c *conn) pump(ctx context.Context, id string, source *stream.Consolidator) {
	defer c.unsubscribe(id)

	for {
		payload, ok, err := source.Next(ctx)
		if err != nil {
			c.writeOrClose(id, "error", err.Error())
			return
		}
		if !ok {
			c.writeOrClose(id, "complete", nil)
			return
		}
		c.writeOrClose(id, "update", payload)
		if !payload.HasNext {
			c.writeOrClose(id, "complete", nil)
			return
		}
	}
}

func (c *conn) unsubscribe(id string) {
	c.mu.Lock()
	source, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		source.Cancel()
	}
}

func (c *conn) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, source := range c.subs {
		source.Cancel()
		delete(c.subs, id)
	}
}

func firstMessage(errs []*coregraphql.Error) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0].Message
}
